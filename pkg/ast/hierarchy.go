package ast

// Location describes where a step sits in a grammar.
type Location struct {
	Step Step
	Path Path
	// Parent is nil for the root step of a noun.
	Parent Step
	Noun   string
}

// Hierarchy decorates a grammar with upward links: for each step, its parent
// and owning noun. It is built once by Link and never updated; any structural
// edit requires building a new Hierarchy.
type Hierarchy struct {
	grammar   Grammar
	locations map[string]Location
}

// Link builds the Hierarchy of a grammar.
func Link(g Grammar) *Hierarchy {
	h := &Hierarchy{g, make(map[string]Location)}
	for _, n := range g {
		var parents []Step
		WalkStep(n.Step, RootPath(n.Name), func(step Step, p Path) bool {
			parents = parents[:len(p.Steps)]
			var parent Step
			if len(parents) > 0 {
				parent = parents[len(parents)-1]
			}
			h.locations[p.String()] = Location{step, p, parent, n.Name}
			parents = append(parents, step)
			return true
		})
	}
	return h
}

// Grammar returns the grammar the hierarchy was built from.
func (h *Hierarchy) Grammar() Grammar { return h.grammar }

// Lookup returns the location of the step addressed by p.
func (h *Hierarchy) Lookup(p Path) (Location, bool) {
	loc, ok := h.locations[p.String()]
	return loc, ok
}

// Parent returns the location of the parent of the step addressed by p. It
// returns false if p is a root path or does not address a step.
func (h *Hierarchy) Parent(p Path) (Location, bool) {
	pp, ok := p.Parent()
	if !ok {
		return Location{}, false
	}
	return h.Lookup(pp)
}

// Len returns the number of steps in the hierarchy.
func (h *Hierarchy) Len() int { return len(h.locations) }
