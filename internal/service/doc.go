// Package service routes qualified tool IDs ("terminal.write",
// "repo.commit") to the engine provider that owns them.
package service
