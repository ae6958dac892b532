package store

import (
	"github.com/google/btree"
)

// Extent maps Count consecutive slots starting at SlotStart onto Count
// consecutive physical blocks starting at BlockStart. Block numbers are
// in page-sized units; well laid out stores collapse into a handful of
// extents, so lookups stay cheap however large the store is.
type Extent struct {
	SlotStart  uint64
	Count      uint64
	BlockStart uint64
}

// ExtentTree is the ordered slot → block map of one backing store. It is
// built once during activation and read-only afterwards, so readers need
// no locking.
type ExtentTree struct {
	tree *btree.BTreeG[Extent]
}

func NewExtentTree() *ExtentTree {
	return &ExtentTree{
		tree: btree.NewG[Extent](16, func(a, b Extent) bool {
			return a.SlotStart < b.SlotStart
		}),
	}
}

// Add appends a mapping for count slots at slotStart. When both the slot
// run and the block run continue the highest existing extent, the extent
// is widened in place. Returns 1 when a new extent was created and 0 when
// the mapping merged.
func (t *ExtentTree) Add(slotStart, count, blockStart uint64) int {
	if last, ok := t.tree.Max(); ok &&
		last.SlotStart+last.Count == slotStart &&
		last.BlockStart+last.Count == blockStart {
		last.Count += count
		t.tree.ReplaceOrInsert(last)
		return 0
	}
	t.tree.ReplaceOrInsert(Extent{SlotStart: slotStart, Count: count, BlockStart: blockStart})
	return 1
}

// Lookup returns the extent covering slot.
func (t *ExtentTree) Lookup(slot uint64) (Extent, bool) {
	var found Extent
	ok := false
	t.tree.DescendLessOrEqual(Extent{SlotStart: slot}, func(e Extent) bool {
		found = e
		ok = true
		return false
	})
	if !ok || slot >= found.SlotStart+found.Count {
		return Extent{}, false
	}
	return found, true
}

// Len returns the number of extents.
func (t *ExtentTree) Len() int {
	return t.tree.Len()
}

// Walk visits extents in slot order until fn returns false.
func (t *ExtentTree) Walk(fn func(Extent) bool) {
	t.tree.Ascend(func(e Extent) bool {
		return fn(e)
	})
}

// Clear drops all extents, leaving the tree empty.
func (t *ExtentTree) Clear() {
	t.tree.Clear(false)
}
