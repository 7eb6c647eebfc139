package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a step inside a grammar: the name of the owning noun,
// followed by child positions starting from the noun's root step.
type Path struct {
	Noun  string
	Steps []int
}

// RootPath returns the path of the root step of a noun.
func RootPath(noun string) Path { return Path{Noun: noun} }

// Child returns the path of the i-th child of the step addressed by p.
func (p Path) Child(i int) Path {
	steps := make([]int, len(p.Steps)+1)
	copy(steps, p.Steps)
	steps[len(p.Steps)] = i
	return Path{p.Noun, steps}
}

// Parent returns the path of the parent step, and false if p is a root path.
func (p Path) Parent() (Path, bool) {
	if len(p.Steps) == 0 {
		return p, false
	}
	return Path{p.Noun, p.Steps[:len(p.Steps)-1:len(p.Steps)-1]}, true
}

// Last returns the last child position of p, or -1 for a root path.
func (p Path) Last() int {
	if len(p.Steps) == 0 {
		return -1
	}
	return p.Steps[len(p.Steps)-1]
}

// IsRoot reports whether p addresses the root step of a noun.
func (p Path) IsRoot() bool { return len(p.Steps) == 0 }

// HasPrefix reports whether q addresses p itself or an ancestor of p.
func (p Path) HasPrefix(q Path) bool {
	if p.Noun != q.Noun || len(q.Steps) > len(p.Steps) {
		return false
	}
	for i, s := range q.Steps {
		if p.Steps[i] != s {
			return false
		}
	}
	return true
}

// Equal reports whether two paths address the same step.
func (p Path) Equal(q Path) bool {
	return len(p.Steps) == len(q.Steps) && p.HasPrefix(q)
}

// String renders the path as the noun name followed by slash-separated
// positions, like "a/0/2". It is also the key of the path in a Hierarchy.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString(p.Noun)
	for _, s := range p.Steps {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(s))
	}
	return sb.String()
}

// ParsePath parses the output of Path.String.
func ParsePath(s string) (Path, error) {
	fields := strings.Split(s, "/")
	if fields[0] == "" {
		return Path{}, fmt.Errorf("bad path %q: empty noun name", s)
	}
	p := Path{Noun: fields[0]}
	for _, f := range fields[1:] {
		i, err := strconv.Atoi(f)
		if err != nil || i < 0 {
			return Path{}, fmt.Errorf("bad path %q: bad position %q", s, f)
		}
		p.Steps = append(p.Steps, i)
	}
	return p, nil
}
