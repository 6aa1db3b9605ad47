package ast

// Visitor is implemented by algorithms that walk a filter tree.
type Visitor interface {
	Visit(Node) Visitor
}

func (f *UnaryFilter) Accept(v Visitor)   { Walk(v, f) }
func (f *CompareFilter) Accept(v Visitor) { Walk(v, f) }
func (f *InFilter) Accept(v Visitor)      { Walk(v, f) }
func (f *NotFilter) Accept(v Visitor)     { Walk(v, f) }
func (f *BoolFilter) Accept(v Visitor)    { Walk(v, f) }

// Walk traverses the tree rooted at node using the provided visitor.
// A visitor returning nil from Visit prunes the subtree.
func Walk(v Visitor, node Node) {
	if node == nil || v == nil {
		return
	}
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	case *NotFilter:
		if n.Filter != nil {
			Walk(v, n.Filter)
		}
	case *BoolFilter:
		for _, f := range n.Filters {
			if f != nil {
				Walk(v, f)
			}
		}
	case *UnaryFilter, *CompareFilter, *InFilter:
		// leaves
	}

	v.Visit(nil)
}

// ExceedsDepth reports whether f nests deeper than limit levels. A single
// comparison has depth 1. The walk stops descending once the limit is passed.
func ExceedsDepth(f Filter, limit int) bool {
	if f == nil {
		return false
	}
	d := &depthVisitor{limit: limit}
	Walk(d, f)
	return d.exceeded
}

type depthVisitor struct {
	limit    int
	depth    int
	exceeded bool
}

func (d *depthVisitor) Visit(node Node) Visitor {
	if node == nil {
		d.depth--
		return d
	}
	d.depth++
	if d.depth > d.limit {
		d.exceeded = true
		d.depth--
		return nil
	}
	return d
}
