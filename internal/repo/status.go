package repo

import (
	"bufio"
	"strings"
)

// Kind classifies a single file change.
type Kind string

const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
	KindRenamed  Kind = "renamed"
	KindCopied   Kind = "copied"
	KindUnmerged Kind = "unmerged"
	// KindUnknown covers status characters this parser does not
	// recognize; the entry is kept rather than failing the parse.
	KindUnknown Kind = "unknown"
)

// FileChange is one changed path. OldPath is set for renames/copies.
type FileChange struct {
	Path    string `json:"path"`
	OldPath string `json:"old_path,omitempty"`
	Kind    Kind   `json:"kind"`
}

// Status is the three-collection change model. A path appears in at
// most one of Staged/Unstaged, except the partially staged case where
// git itself reports both; Untracked is mutually exclusive with both.
// Entry order follows the tool's native output order.
type Status struct {
	Staged    []FileChange `json:"staged"`
	Unstaged  []FileChange `json:"unstaged"`
	Untracked []string     `json:"untracked"`
}

// Clone returns a deep copy.
func (s *Status) Clone() *Status {
	out := &Status{
		Staged:    append([]FileChange(nil), s.Staged...),
		Unstaged:  append([]FileChange(nil), s.Unstaged...),
		Untracked: append([]string(nil), s.Untracked...),
	}
	return out
}

// Branch is one entry from the branch listing.
type Branch struct {
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current"`
}

// CommitInfo is one entry from the commit log.
type CommitInfo struct {
	Hash      string `json:"hash"`
	Author    string `json:"author"`
	Email     string `json:"email"`
	Timestamp int64  `json:"timestamp"`
	Subject   string `json:"subject"`
}

// ParseStatus parses `git status --porcelain` output. Each line is an
// XY code pair followed by the path: `??` marks an untracked path; a
// non-blank X yields a staged change, a non-blank Y an unstaged change
// for the same path. Both non-blank means partially staged and the
// path legitimately appears in both collections. Unrecognized status
// characters degrade to KindUnknown instead of failing the parse.
func ParseStatus(output string) *Status {
	status := &Status{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}

		x, y := line[0], line[1]
		path, oldPath := splitRename(line[3:])

		switch {
		case x == '?' && y == '?':
			status.Untracked = append(status.Untracked, path)
		case x == '!' && y == '!':
			// Ignored entries only appear when explicitly requested.
		default:
			if x != ' ' && x != '?' {
				status.Staged = append(status.Staged, FileChange{
					Path:    path,
					OldPath: oldPath,
					Kind:    charToKind(x),
				})
			}
			if y != ' ' && y != '?' {
				status.Unstaged = append(status.Unstaged, FileChange{
					Path:    path,
					OldPath: oldPath,
					Kind:    charToKind(y),
				})
			}
		}
	}

	return status
}

// splitRename handles the `old -> new` form git emits for renames and
// copies. Returns (path, oldPath); oldPath is empty for plain entries.
func splitRename(field string) (string, string) {
	if idx := strings.Index(field, " -> "); idx >= 0 {
		return field[idx+4:], field[:idx]
	}
	return field, ""
}

func charToKind(c byte) Kind {
	switch c {
	case 'M', 'T':
		return KindModified
	case 'A':
		return KindAdded
	case 'D':
		return KindDeleted
	case 'R':
		return KindRenamed
	case 'C':
		return KindCopied
	case 'U':
		return KindUnmerged
	default:
		return KindUnknown
	}
}

// ParseBranches parses `git branch` output. The line bearing the
// current-branch marker has the marker and following whitespace
// stripped and is reported as current.
func ParseBranches(output string) []Branch {
	var branches []Branch

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" {
			continue
		}

		current := false
		if strings.HasPrefix(line, "*") {
			current = true
			line = strings.TrimLeft(line[1:], " \t")
		} else {
			line = strings.TrimLeft(line, " \t")
		}

		// Detached HEAD shows as "(HEAD detached at <hash>)".
		if line == "" {
			continue
		}

		branches = append(branches, Branch{Name: line, IsCurrent: current})
	}

	return branches
}
