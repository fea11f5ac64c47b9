// Package repo implements the repository status engine: an exec-based
// git wrapper plus an in-memory staged/unstaged/untracked model.
//
// Ground truth comes from `git status --porcelain`; stage and unstage
// are optimistic local transitions on the last snapshot that never
// touch the tool. The model is allowed to diverge from git until the
// next refresh, whose result fully replaces the snapshot and discards
// any un-reconciled optimistic mutations.
package repo
