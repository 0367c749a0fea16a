package index

import (
	"bytes"
	"sort"
	"sync"

	art "github.com/plar/go-adaptive-radix-tree"
	"golang.org/x/exp/slices"

	"casklog/data"
)

// AdaptiveRadixTree wraps plar/go-adaptive-radix-tree.
// https://github.com/plar/go-adaptive-radix-tree
type AdaptiveRadixTree struct {
	tree art.Tree
	lock *sync.RWMutex
}

// NewART builds an empty adaptive-radix-tree key directory.
func NewART() *AdaptiveRadixTree {
	return &AdaptiveRadixTree{
		tree: art.New(),
		lock: new(sync.RWMutex),
	}
}

func (at *AdaptiveRadixTree) Put(key []byte, pos *data.RecordPos) *data.RecordPos {
	at.lock.Lock()
	oldValue, _ := at.tree.Insert(key, pos)
	at.lock.Unlock()
	if oldValue == nil {
		return nil
	}
	return oldValue.(*data.RecordPos)
}

func (at *AdaptiveRadixTree) Get(key []byte) *data.RecordPos {
	at.lock.RLock()
	defer at.lock.RUnlock()
	value, found := at.tree.Search(key)
	if !found {
		return nil
	}
	return value.(*data.RecordPos)
}

func (at *AdaptiveRadixTree) Size() int {
	at.lock.RLock()
	size := at.tree.Size()
	at.lock.RUnlock()
	return size
}

func (at *AdaptiveRadixTree) Iterator(reverse bool) Iterator {
	at.lock.RLock()
	defer at.lock.RUnlock()
	return newARTIterator(at.tree, reverse)
}

func (at *AdaptiveRadixTree) Close() error {
	return nil
}

// artIterator snapshots the tree into a byte-ordered slice.
type artIterator struct {
	currIndex int
	reverse   bool
	values    []*Item
}

func newARTIterator(tree art.Tree, reverse bool) *artIterator {
	values := make([]*Item, 0, tree.Size())
	tree.ForEach(func(node art.Node) bool {
		values = append(values, &Item{
			key: node.Key(),
			pos: node.Value().(*data.RecordPos),
		})
		return true
	})
	slices.SortFunc(values, func(a, b *Item) int {
		return bytes.Compare(a.key, b.key)
	})
	if reverse {
		slices.Reverse(values)
	}

	return &artIterator{
		currIndex: 0,
		reverse:   reverse,
		values:    values,
	}
}

func (ai *artIterator) Rewind() {
	ai.currIndex = 0
}

func (ai *artIterator) Seek(key []byte) {
	if ai.reverse {
		ai.currIndex = sort.Search(len(ai.values), func(i int) bool {
			return bytes.Compare(ai.values[i].key, key) <= 0
		})
	} else {
		ai.currIndex = sort.Search(len(ai.values), func(i int) bool {
			return bytes.Compare(ai.values[i].key, key) >= 0
		})
	}
}

func (ai *artIterator) Next() {
	ai.currIndex += 1
}

func (ai *artIterator) Valid() bool {
	return ai.currIndex < len(ai.values)
}

func (ai *artIterator) Key() []byte {
	return ai.values[ai.currIndex].key
}

func (ai *artIterator) Value() *data.RecordPos {
	return ai.values[ai.currIndex].pos
}

func (ai *artIterator) Close() {
	ai.values = nil
}
