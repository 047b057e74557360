package version

import (
	"fmt"
	"regexp"
	"strings"
)

// Relation is a comparison operator in a version constraint
type Relation string

const (
	LessThan     Relation = "<<"
	LessEqual    Relation = "<="
	Equal        Relation = "=="
	NotEqual     Relation = "!="
	GreaterEqual Relation = ">="
	GreaterThan  Relation = ">>"
)

var (
	nameRegex       = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	constraintRegex = regexp.MustCompile(`^(<<|<=|==|!=|>=|>>)\s*(\d+(?:\.\d+){0,2})$`)
)

// Constraint is a single "op version" pair
type Constraint struct {
	Relation Relation
	Version  Version
}

// Satisfied reports whether v satisfies the constraint
func (c Constraint) Satisfied(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Relation {
	case LessThan:
		return cmp < 0
	case LessEqual:
		return cmp <= 0
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case GreaterEqual:
		return cmp >= 0
	case GreaterThan:
		return cmp > 0
	}
	return false
}

func (c Constraint) String() string {
	return string(c.Relation) + c.Version.String()
}

// Designator names a plugin and optionally constrains its version,
// e.g. "magic (>>1.0, !=1.2.2)".
type Designator struct {
	Plugin      string
	Constraints []Constraint
}

// ParseDesignator parses a requires entry
func ParseDesignator(s string) (Designator, error) {
	input := strings.TrimSpace(s)

	name := input
	rest := ""
	if idx := strings.IndexByte(input, '('); idx >= 0 {
		name = strings.TrimSpace(input[:idx])
		rest = input[idx:]
	}

	if !nameRegex.MatchString(name) {
		return Designator{}, fmt.Errorf("invalid designator %q: bad plugin name", s)
	}

	// plugin names follow section names, which are case-insensitive
	d := Designator{Plugin: strings.ToLower(name)}
	if rest == "" {
		return d, nil
	}

	if !strings.HasSuffix(rest, ")") {
		return Designator{}, fmt.Errorf("invalid designator %q: missing ')'", s)
	}

	body := strings.TrimSpace(rest[1 : len(rest)-1])
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		matches := constraintRegex.FindStringSubmatch(part)
		if matches == nil {
			return Designator{}, fmt.Errorf("invalid designator %q: bad constraint %q", s, part)
		}
		v, err := Parse(matches[2])
		if err != nil {
			return Designator{}, fmt.Errorf("invalid designator %q: %w", s, err)
		}
		d.Constraints = append(d.Constraints, Constraint{
			Relation: Relation(matches[1]),
			Version:  v,
		})
	}

	return d, nil
}

// Satisfied reports whether v satisfies every constraint
func (d Designator) Satisfied(v Version) bool {
	for _, c := range d.Constraints {
		if !c.Satisfied(v) {
			return false
		}
	}
	return true
}

// ConstraintString renders the constraints the way they are written
func (d Designator) ConstraintString() string {
	parts := make([]string, 0, len(d.Constraints))
	for _, c := range d.Constraints {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ", ")
}

func (d Designator) String() string {
	if len(d.Constraints) == 0 {
		return d.Plugin
	}
	return fmt.Sprintf("%s (%s)", d.Plugin, d.ConstraintString())
}
