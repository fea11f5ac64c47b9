// Package logging provides structured logging built on zap.
//
// Development mode uses colored console encoding; production emits
// JSON. Each engine takes a named child logger (term, repo, auth) so
// session traces can be filtered per component.
package logging
