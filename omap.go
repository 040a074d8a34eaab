package nexusrpc

import (
	"cmp"
	"reflect"

	rb "github.com/glycerine/rbtree"
)

// omap is a red-black-tree-backed ordered map keyed by any
// cmp.Ordered type (addrBook.byID, registry.byID, §11.6 of
// SPEC_FULL.md): get/set/delete run in O(log n) without requiring a
// hashable key. Only the lookup/insert/delete surface is kept here;
// range iteration, delete-during-iteration, and order-caching concerns
// a general-purpose ordered map would otherwise carry aren't needed by
// either caller.
type omap[K cmp.Ordered, V any] struct {
	tree *rb.Tree
}

// newOmap makes a new omap.
func newOmap[K cmp.Ordered, V any]() *omap[K, V] {
	return &omap[K, V]{
		tree: rb.NewTree(func(a, b rb.Item) int {
			ak := a.(*okv[K, V]).key
			bk := b.(*okv[K, V]).key
			return cmp.Compare(ak, bk)
		}),
	}
}

type okv[K cmp.Ordered, V any] struct {
	key K
	val V
}

// Len returns the number of keys stored in the omap.
func (s *omap[K, V]) Len() int {
	return s.tree.Len()
}

// delkey deletes a key from the omap, reporting whether it was present.
func (s *omap[K, V]) delkey(key K) (found bool) {
	if isNil(key) {
		return false
	}
	query := &okv[K, V]{key: key}
	it, found := s.tree.FindGE_isEqual(query)
	if found {
		s.tree.DeleteWithIterator(it)
	}
	return found
}

// set is an upsert: inserts key/val if key is not already present,
// otherwise updates the existing entry's value in place.
func (s *omap[K, V]) set(key K, val V) (newlyAdded bool) {
	if isNil(key) {
		return false
	}
	query := &okv[K, V]{key: key, val: val}
	it, found := s.tree.FindGE_isEqual(query)
	if found {
		it.Item().(*okv[K, V]).val = val
		return false
	}
	s.tree.InsertGetIt(query)
	return true
}

// get2 returns the val stored under key, and whether it was found.
func (s *omap[K, V]) get2(key K) (val V, found bool) {
	if isNil(key) {
		return
	}
	query := &okv[K, V]{key: key}
	it, found := s.tree.FindGE_isEqual(query)
	if found {
		val = it.Item().(*okv[K, V]).val
	}
	return
}

// get does get2 but without the found flag.
func (s *omap[K, V]) get(key K) (val V) {
	val, _ = s.get2(key)
	return
}

// isNil reports whether v is a nil pointer/interface/map/slice/chan/
// func value, the only keys that set/get2/delkey refuse to operate
// on; comparable non-nilable keys (strings, integers) always report
// false.
func isNil[T any](v T) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}
