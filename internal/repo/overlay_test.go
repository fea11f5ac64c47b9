package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageUntrackedBecomesAdded(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{Untracked: []string{"new.txt"}})

	o.Stage("new.txt")

	cur := o.Current()
	assert.Empty(t, cur.Untracked)
	require.Len(t, cur.Staged, 1)
	assert.Equal(t, FileChange{Path: "new.txt", Kind: KindAdded}, cur.Staged[0])
}

func TestStageUnstagedKeepsKind(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{Unstaged: []FileChange{{Path: "a.go", Kind: KindDeleted}}})

	o.Stage("a.go")

	cur := o.Current()
	assert.Empty(t, cur.Unstaged)
	require.Len(t, cur.Staged, 1)
	assert.Equal(t, KindDeleted, cur.Staged[0].Kind)
}

func TestStageUnstageRoundTrip(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{
		Unstaged:  []FileChange{{Path: "mod.go", Kind: KindModified}},
		Untracked: []string{"fresh.txt"},
	})

	// Added-from-untracked restores to untracked.
	o.Stage("fresh.txt")
	o.Unstage("fresh.txt")

	// Modified-from-unstaged restores to unstaged.
	o.Stage("mod.go")
	o.Unstage("mod.go")

	cur := o.Current()
	assert.Empty(t, cur.Staged)
	require.Len(t, cur.Unstaged, 1)
	assert.Equal(t, FileChange{Path: "mod.go", Kind: KindModified}, cur.Unstaged[0])
	assert.Equal(t, []string{"fresh.txt"}, cur.Untracked)
}

func TestStageUnknownPathIsNoOp(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{Untracked: []string{"a.txt"}})

	o.Stage("ghost.txt")
	o.Unstage("ghost.txt")

	cur := o.Current()
	assert.Empty(t, cur.Staged)
	assert.Equal(t, []string{"a.txt"}, cur.Untracked)
}

func TestStagePartiallyStagedCollapses(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{
		Staged:   []FileChange{{Path: "b.ts", Kind: KindModified}},
		Unstaged: []FileChange{{Path: "b.ts", Kind: KindModified}},
	})

	o.Stage("b.ts")

	cur := o.Current()
	assert.Empty(t, cur.Unstaged)
	require.Len(t, cur.Staged, 1)
}

func TestStageAllAndUnstageAll(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{
		Unstaged:  []FileChange{{Path: "a.go", Kind: KindModified}, {Path: "b.go", Kind: KindDeleted}},
		Untracked: []string{"c.txt"},
	})

	o.StageAll()

	cur := o.Current()
	assert.Empty(t, cur.Unstaged)
	assert.Empty(t, cur.Untracked)
	assert.Len(t, cur.Staged, 3)

	o.UnstageAll()

	cur = o.Current()
	assert.Empty(t, cur.Staged)
	assert.Len(t, cur.Unstaged, 2)
	assert.Equal(t, []string{"c.txt"}, cur.Untracked)
}

func TestReplaceDiscardsOptimisticMutations(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{Untracked: []string{"x.txt"}})

	// Optimistic mutation while a refresh is notionally in flight.
	o.Stage("x.txt")
	require.Len(t, o.Current().Staged, 1)

	// The refresh result fully replaces the model: the un-reconciled
	// optimistic stage is gone, not merged.
	o.Replace(&Status{Untracked: []string{"x.txt", "y.txt"}})

	cur := o.Current()
	assert.Empty(t, cur.Staged)
	assert.Equal(t, []string{"x.txt", "y.txt"}, cur.Untracked)
}

func TestCurrentReturnsCopy(t *testing.T) {
	o := NewOverlay()
	o.Replace(&Status{Untracked: []string{"a"}})

	cur := o.Current()
	cur.Untracked[0] = "mutated"

	assert.Equal(t, []string{"a"}, o.Current().Untracked)
}
