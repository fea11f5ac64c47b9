package repo

import "sync"

// Overlay layers optimistic stage/unstage transitions over the last
// authoritative snapshot. Mutations never invoke git; a Replace (the
// result of a refresh) discards every optimistic change wholesale
// rather than merging, so the model is always either the tool's view
// or the tool's view plus local transitions, never a mix of two
// tool views.
type Overlay struct {
	mu     sync.Mutex
	status *Status
}

// NewOverlay creates an overlay with an empty snapshot.
func NewOverlay() *Overlay {
	return &Overlay{status: &Status{}}
}

// Replace installs a fresh authoritative snapshot, dropping any
// optimistic mutations applied since the previous one.
func (o *Overlay) Replace(s *Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s.Clone()
}

// Current returns a copy of the present model.
func (o *Overlay) Current() *Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.Clone()
}

// Stage optimistically moves a path into the staged collection:
// untracked paths become staged Added entries, unstaged entries move
// to staged keeping their kind. Unknown paths and already-staged
// paths are no-ops.
func (o *Overlay) Stage(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stagePath(o.status, path)
}

// Unstage reverses Stage: a staged Added entry returns to untracked,
// anything else returns to the unstaged collection with its kind
// intact. Unknown paths are no-ops.
func (o *Overlay) Unstage(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	unstagePath(o.status, path)
}

// StageAll applies Stage to every unstaged and untracked entry.
func (o *Overlay) StageAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, fc := range append([]FileChange(nil), o.status.Unstaged...) {
		stagePath(o.status, fc.Path)
	}
	for _, path := range append([]string(nil), o.status.Untracked...) {
		stagePath(o.status, path)
	}
}

// UnstageAll applies Unstage to every staged entry.
func (o *Overlay) UnstageAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, fc := range append([]FileChange(nil), o.status.Staged...) {
		unstagePath(o.status, fc.Path)
	}
}

func stagePath(s *Status, path string) {
	// Untracked -> staged Added.
	for i, p := range s.Untracked {
		if p == path {
			s.Untracked = append(s.Untracked[:i], s.Untracked[i+1:]...)
			appendStaged(s, FileChange{Path: path, Kind: KindAdded})
			return
		}
	}

	// Unstaged -> staged, keeping the kind. If the path was partially
	// staged the two entries collapse into the existing staged one,
	// matching what the tool would do.
	for i, fc := range s.Unstaged {
		if fc.Path == path {
			s.Unstaged = append(s.Unstaged[:i], s.Unstaged[i+1:]...)
			appendStaged(s, fc)
			return
		}
	}
}

func unstagePath(s *Status, path string) {
	for i, fc := range s.Staged {
		if fc.Path == path {
			s.Staged = append(s.Staged[:i], s.Staged[i+1:]...)
			if fc.Kind == KindAdded {
				s.Untracked = append(s.Untracked, path)
			} else {
				appendUnstaged(s, fc)
			}
			return
		}
	}
}

// appendStaged keeps staged entries unique by path.
func appendStaged(s *Status, fc FileChange) {
	for _, existing := range s.Staged {
		if existing.Path == fc.Path {
			return
		}
	}
	s.Staged = append(s.Staged, fc)
}

func appendUnstaged(s *Status, fc FileChange) {
	for _, existing := range s.Unstaged {
		if existing.Path == fc.Path {
			return
		}
	}
	s.Unstaged = append(s.Unstaged, fc)
}
