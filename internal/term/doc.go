// Package term implements the process session manager: PTY-backed
// interactive shell sessions identified by opaque handles.
//
// Lifecycle discipline:
//   - Create registers a handle and returns immediately; the PTY spawn
//     happens asynchronously and spawn failures surface as events, not
//     as Create errors.
//   - Write, Resize, and Kill on an unknown handle are silent no-ops.
//     These are routine races with the exit path, not errors.
//   - The exit code (or a synthetic -1 on spawn failure) is published
//     at most once per session; a late exit for a handle that Kill has
//     already removed is dropped.
//   - A handle is never reused after removal.
package term
