package ir

// Relation classifies how two processes sit relative to each other in the
// composite hierarchy.
type Relation uint8

const (
	// RelationOther means the processes live in different branches.
	RelationOther Relation = iota
	// RelationSibling means both share the same direct parent.
	RelationSibling
	// RelationFirstParent means the other process directly contains this one.
	RelationFirstParent
	// RelationParent means the other process contains this one further up.
	RelationParent
	// RelationFirstChild means this process directly contains the other one.
	RelationFirstChild
	// RelationChild means this process contains the other one further down.
	RelationChild
)

var relationNames = [...]string{
	RelationOther:       "other",
	RelationSibling:     "sibling",
	RelationFirstParent: "first_parent",
	RelationParent:      "parent",
	RelationFirstChild:  "first_child",
	RelationChild:       "child",
}

// String implements fmt.Stringer.
func (r Relation) String() string {
	if int(r) < len(relationNames) {
		return relationNames[r]
	}
	return "other"
}

// SetParent moves child under the composite parent. A zero parent moves it
// back to the network root.
func (n *Network) SetParent(child, parent Handle) error {
	c := n.Process(child)
	if c == nil {
		return NewInvalidArgument("child process %d does not exist", child)
	}
	if parent == 0 {
		c.parent = 0
		return nil
	}
	p := n.Process(parent)
	if p == nil {
		return NewInvalidArgument("parent process %d does not exist", parent)
	}
	if p.Kind != KindComposite {
		return NewIllegalState(p.ID, "only composites can contain processes")
	}
	for a := parent; a != 0; a = n.processes[a-1].parent {
		if a == child {
			return NewIllegalState(c.ID, "moving under %q would create a containment cycle", p.ID)
		}
	}
	c.parent = parent
	return nil
}

// Children returns the direct children of composite h ordered by Id. A zero
// h returns the processes at the network root.
func (n *Network) Children(h Handle) []Handle {
	var out []Handle
	for _, ph := range n.Processes() {
		if n.processes[ph-1].parent == h {
			out = append(out, ph)
		}
	}
	return out
}

// Path returns the Ids from the outermost composite down to h, inclusive.
func (n *Network) Path(h Handle) []Id {
	var rev []Id
	for a := h; a != 0; a = n.processes[a-1].parent {
		if n.Process(a) == nil {
			break
		}
		rev = append(rev, n.processes[a-1].ID)
	}
	path := make([]Id, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}

// Relation reports how other relates to h by walking parent links.
func (n *Network) Relation(h, other Handle) Relation {
	ph, po := n.Process(h), n.Process(other)
	if ph == nil || po == nil || h == other {
		return RelationOther
	}
	if ph.parent == po.parent {
		return RelationSibling
	}
	if ph.parent == other {
		return RelationFirstParent
	}
	if po.parent == h {
		return RelationFirstChild
	}
	if n.isAncestor(other, h) {
		return RelationParent
	}
	if n.isAncestor(h, other) {
		return RelationChild
	}
	return RelationOther
}

// isAncestor reports whether anc contains h at any depth.
func (n *Network) isAncestor(anc, h Handle) bool {
	for a := n.processes[h-1].parent; a != 0; a = n.processes[a-1].parent {
		if a == anc {
			return true
		}
	}
	return false
}
