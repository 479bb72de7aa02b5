package piecetree

import "github.com/Sumatoshi-tech/piecetree/pkg/rbtree"

// structuralIndex records, for every node registered under a structural
// container (see Engine.SetContainer), which container it belongs to. It is
// backed by rbtree.RBTree instead of a plain Go map so that splitContainer's
// reparenting scan (see split.go) visits affected nodes in a fixed,
// reproducible key order rather than Go's randomized map iteration order.
type structuralIndex struct {
	alloc *rbtree.Allocator
	tree  *rbtree.RBTree
}

func newStructuralIndex() *structuralIndex {
	alloc := rbtree.NewAllocator()

	return &structuralIndex{alloc: alloc, tree: rbtree.NewRBTree(alloc)}
}

// get returns the container node is registered under, if any.
func (s *structuralIndex) get(node uint32) (uint32, bool) {
	if s == nil {
		return 0, false
	}

	v := s.tree.Get(node)
	if v == nil {
		return 0, false
	}

	return *v, true
}

// set registers node under container, replacing any prior registration.
func (s *structuralIndex) set(node, container uint32) {
	s.tree.DeleteWithKey(node)
	s.tree.Insert(rbtree.Item{Key: node, Value: container})
}

// forEach visits every (node, container) pair in ascending node-key order.
func (s *structuralIndex) forEach(visit func(node, container uint32)) {
	if s == nil {
		return
	}

	for iter := s.tree.Min(); !iter.Limit(); iter = iter.Next() {
		item := iter.Item()
		visit(item.Key, item.Value)
	}
}
