package nodeio

import "github.com/scigolib/irwi/internal/blockio"

// NodePtr points to a node of unknown type (internal vs leaf is a
// property of the tree level, not of the pointer itself).
type NodePtr struct {
	Handle blockio.Handle
	Valid  bool
}

// InternalPtr points to an internal node.
type InternalPtr struct {
	Handle blockio.Handle
}

// LeafPtr points to a leaf node.
type LeafPtr struct {
	Handle blockio.Handle
}

// AsNode converts an InternalPtr to a NodePtr.
func (p InternalPtr) AsNode() NodePtr { return NodePtr{Handle: p.Handle, Valid: true} }

// AsNode converts a LeafPtr to a NodePtr.
func (p LeafPtr) AsNode() NodePtr { return NodePtr{Handle: p.Handle, Valid: true} }

// ToInternal reinterprets a NodePtr as an InternalPtr. The caller is
// responsible for knowing (from the tree level) that this is correct.
func (p NodePtr) ToInternal() InternalPtr { return InternalPtr{Handle: p.Handle} }

// ToLeaf reinterprets a NodePtr as a LeafPtr.
func (p NodePtr) ToLeaf() LeafPtr { return LeafPtr{Handle: p.Handle} }
