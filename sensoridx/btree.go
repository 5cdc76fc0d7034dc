// ════════════════════════════════════════════════════════════════════════════════════════════════
// SENSOR INDEX — B+TREE OVER ENTITY IDS
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: EntityID → weight row index
//
// Description:
//   Ordered multiway index whose node pages are the pointer chain the harness
//   measures. A lookup walks root → inner pages → leaf page; each hop is a
//   dependent load, which is exactly the latency the scheduled pipeline tries
//   to overlap across tasks.
//
// Design Principles:
//   - Slot counts per node kind are runtime traits, so experiments can vary the
//     branching factor without touching pipeline code
//   - Key and value arrays of a page are allocated once at full slot capacity
//   - Leaves are linked left to right for ordered scans
//   - Built once at setup, read-only afterwards; no deletion
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package sensoridx

import (
	"errors"

	"coroinfer/constants"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INTERFACE & ERRORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Index maps entity ids to dense row offsets.
type Index interface {
	Insert(id EntityID, row uint32) error
	Lookup(id EntityID) (uint32, bool)
	Stats() Stats
}

var (
	// ErrDuplicateKey is returned when an id is inserted twice.
	ErrDuplicateKey = errors.New("sensoridx: duplicate entity id")

	// ErrTraits is returned for slot counts below constants.MinNodeSlots.
	ErrTraits = errors.New("sensoridx: node slot count too small")
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TRAITS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Traits sets the page fanout.
type Traits struct {
	LeafSlots  int // key/row pairs per leaf page
	InnerSlots int // separator keys per inner page (children = InnerSlots+1)
}

const (
	leafPairBytes  = constants.IDSize + 4 // id + uint32 row
	innerPairBytes = constants.IDSize + 8 // id + child pointer
)

// DefaultTraits sizes both node kinds to one NodeBytes page, with a floor of 8 slots.
func DefaultTraits() Traits {
	return Traits{
		LeafSlots:  max(8, constants.NodeBytes/leafPairBytes),
		InnerSlots: max(8, constants.NodeBytes/innerPairBytes),
	}
}

// ScaledTraits multiplies the default slot counts by mult/div, clamped to the minimum.
func ScaledTraits(mult, div int) Traits {
	d := DefaultTraits()
	if div <= 0 {
		div = 1
	}
	return Traits{
		LeafSlots:  max(constants.MinNodeSlots, d.LeafSlots*mult/div),
		InnerSlots: max(constants.MinNodeSlots, d.InnerSlots*mult/div),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// NODE LAYOUT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// node is one page. Leaves use keys+rows+next; inner pages use keys+kids,
// where kids[i] holds keys < keys[i] and kids[len(keys)] the rest.
type node struct {
	leaf bool
	keys []EntityID
	rows []uint32
	kids []*node
	next *node
}

// Tree is a B+tree implementing Index. The zero value is not usable; call New.
type Tree struct {
	root   *node
	traits Traits
	linear bool // per-node search strategy, fixed by slot count

	size       int
	leaves     int
	innerNodes int
	levels     int
}

// New creates an empty tree.
func New(t Traits) (*Tree, error) {
	if t.LeafSlots < constants.MinNodeSlots || t.InnerSlots < constants.MinNodeSlots {
		return nil, ErrTraits
	}
	widest := max(t.LeafSlots, t.InnerSlots)
	return &Tree{
		traits: t,
		linear: widest*constants.IDSize <= constants.BinSearchThreshold,
	}, nil
}

// Build creates a tree and inserts ids[i] → i in slice order.
func Build(t Traits, ids []EntityID) (*Tree, error) {
	tr, err := New(t)
	if err != nil {
		return nil, err
	}
	for i := range ids {
		if err := tr.Insert(ids[i], uint32(i)); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// Traits returns the slot configuration.
func (t *Tree) Traits() Traits { return t.traits }

// Len returns the number of stored ids.
func (t *Tree) Len() int { return t.size }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SEARCH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// lowerBound returns the first slot whose key is >= id.
//
//go:nosplit
func (t *Tree) lowerBound(keys []EntityID, id *EntityID) int {
	if t.linear {
		i := 0
		for i < len(keys) && keys[i].Less(id) {
			i++
		}
		return i
	}
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if keys[mid].Less(id) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first slot whose key is > id.
//
//go:nosplit
func (t *Tree) upperBound(keys []EntityID, id *EntityID) int {
	if t.linear {
		i := 0
		for i < len(keys) && keys[i].Compare(id) <= 0 {
			i++
		}
		return i
	}
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if keys[mid].Compare(id) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup walks root → leaf and returns the row stored for id.
//
//go:nosplit
func (t *Tree) Lookup(id EntityID) (uint32, bool) {
	n := t.root
	if n == nil {
		return 0, false
	}
	for !n.leaf {
		n = n.kids[t.upperBound(n.keys, &id)]
	}
	i := t.lowerBound(n.keys, &id)
	if i < len(n.keys) && n.keys[i] == id {
		return n.rows[i], true
	}
	return 0, false
}

// Ascend calls fn for every (id, row) in key order until fn returns false.
func (t *Tree) Ascend(fn func(id EntityID, row uint32) bool) {
	n := t.root
	if n == nil {
		return
	}
	for !n.leaf {
		n = n.kids[0]
	}
	for ; n != nil; n = n.next {
		for i := range n.keys {
			if !fn(n.keys[i], n.rows[i]) {
				return
			}
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INSERTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func (t *Tree) newLeaf() *node {
	t.leaves++
	return &node{
		leaf: true,
		keys: make([]EntityID, 0, t.traits.LeafSlots+1),
		rows: make([]uint32, 0, t.traits.LeafSlots+1),
	}
}

func (t *Tree) newInner() *node {
	t.innerNodes++
	return &node{
		keys: make([]EntityID, 0, t.traits.InnerSlots+1),
		kids: make([]*node, 0, t.traits.InnerSlots+2),
	}
}

// Insert adds id → row. Pages are split when they exceed their slot count;
// a root split grows the tree by one level.
func (t *Tree) Insert(id EntityID, row uint32) error {
	if t.root == nil {
		t.root = t.newLeaf()
		t.levels = 1
	}
	sep, right, err := t.insert(t.root, &id, row)
	if err != nil {
		return err
	}
	if right != nil {
		r := t.newInner()
		r.keys = append(r.keys, sep)
		r.kids = append(r.kids, t.root, right)
		t.root = r
		t.levels++
	}
	t.size++
	return nil
}

// insert places id under n and returns the separator and new right sibling
// when n had to split.
func (t *Tree) insert(n *node, id *EntityID, row uint32) (EntityID, *node, error) {
	if n.leaf {
		i := t.lowerBound(n.keys, id)
		if i < len(n.keys) && n.keys[i] == *id {
			return EntityID{}, nil, ErrDuplicateKey
		}
		n.keys = insertAt(n.keys, i, *id)
		n.rows = insertAt(n.rows, i, row)
		if len(n.keys) <= t.traits.LeafSlots {
			return EntityID{}, nil, nil
		}
		return t.splitLeaf(n)
	}

	c := t.upperBound(n.keys, id)
	sep, right, err := t.insert(n.kids[c], id, row)
	if err != nil || right == nil {
		return EntityID{}, nil, err
	}
	n.keys = insertAt(n.keys, c, sep)
	n.kids = insertAt(n.kids, c+1, right)
	if len(n.keys) <= t.traits.InnerSlots {
		return EntityID{}, nil, nil
	}
	return t.splitInner(n)
}

// splitLeaf moves the upper half of n into a new right leaf; the separator is
// the right leaf's first key.
func (t *Tree) splitLeaf(n *node) (EntityID, *node, error) {
	mid := len(n.keys) / 2
	r := t.newLeaf()
	r.keys = append(r.keys, n.keys[mid:]...)
	r.rows = append(r.rows, n.rows[mid:]...)
	n.keys = n.keys[:mid]
	n.rows = n.rows[:mid]
	r.next, n.next = n.next, r
	return r.keys[0], r, nil
}

// splitInner promotes the middle key; it belongs to neither half.
func (t *Tree) splitInner(n *node) (EntityID, *node, error) {
	mid := len(n.keys) / 2
	sep := n.keys[mid]
	r := t.newInner()
	r.keys = append(r.keys, n.keys[mid+1:]...)
	r.kids = append(r.kids, n.kids[mid+1:]...)
	clear(n.kids[mid+1:])
	n.keys = n.keys[:mid]
	n.kids = n.kids[:mid+1]
	return sep, r, nil
}

// insertAt shifts s[i:] right by one and stores v at i.
func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Stats describes the page structure for diagnostic reports.
type Stats struct {
	Size       int // stored ids
	Leaves     int // leaf pages
	InnerNodes int // inner pages
	Levels     int // root-to-leaf page count
	LeafSlots  int
	InnerSlots int
}

// Nodes returns the total page count.
func (s Stats) Nodes() int { return s.Leaves + s.InnerNodes }

// AvgFillLeaves is the used fraction of all leaf slots.
func (s Stats) AvgFillLeaves() float64 {
	if s.Leaves == 0 || s.LeafSlots == 0 {
		return 0
	}
	return float64(s.Size) / float64(s.Leaves*s.LeafSlots)
}

// Stats returns the current page statistics.
func (t *Tree) Stats() Stats {
	return Stats{
		Size:       t.size,
		Leaves:     t.leaves,
		InnerNodes: t.innerNodes,
		Levels:     t.levels,
		LeafSlots:  t.traits.LeafSlots,
		InnerSlots: t.traits.InnerSlots,
	}
}
