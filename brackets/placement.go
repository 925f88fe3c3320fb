package brackets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var expressionPattern = regexp.MustCompile(`^([A-Za-z0-9_-]+)\.placements\[([^\]]*)\]$`)

// Reference addresses one entry of a stage's placements.
type Reference struct {
	StageID  string
	Position int
}

// Expression is a parsed `<stage>.placements[<slice>]` reference.
type Expression struct {
	Literal string
	StageID string
	Start   int
	Stop    int // exclusive; -1 means "down to zero" for negative steps
	Step    int
}

// ParseExpression parses a placement expression. A bare index n is treated as n:n+1.
// Slices are expanded against an unbounded index space, so an upward slice needs
// a stop, a downward slice needs a start and negative bounds are rejected.
func ParseExpression(literal string) (*Expression, error) {
	malformed := &MalformedExpressionError{Literal: literal}

	m := expressionPattern.FindStringSubmatch(strings.TrimSpace(literal))
	if m == nil {
		return nil, malformed
	}
	expr := &Expression{Literal: literal, StageID: m[1]}

	parts := strings.Split(m[2], ":")
	if len(parts) > 3 {
		return nil, malformed
	}

	bounds := make([]*int, 3)
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, malformed
		}
		bounds[i] = &v
	}

	if len(parts) == 1 {
		if bounds[0] == nil || *bounds[0] < 0 {
			return nil, malformed
		}
		expr.Start, expr.Stop, expr.Step = *bounds[0], *bounds[0]+1, 1
		return expr, nil
	}

	expr.Step = 1
	if bounds[2] != nil {
		expr.Step = *bounds[2]
	}
	if expr.Step == 0 {
		return nil, malformed
	}
	if (bounds[0] != nil && *bounds[0] < 0) || (bounds[1] != nil && *bounds[1] < 0) {
		return nil, malformed
	}

	if expr.Step > 0 {
		if bounds[1] == nil {
			return nil, malformed
		}
		if bounds[0] != nil {
			expr.Start = *bounds[0]
		}
		expr.Stop = *bounds[1]
		return expr, nil
	}

	if bounds[0] == nil {
		return nil, malformed
	}
	expr.Start = *bounds[0]
	expr.Stop = -1
	if bounds[1] != nil {
		expr.Stop = *bounds[1]
	}
	return expr, nil
}

// Positions expands the slice in order.
func (e *Expression) Positions() []int {
	var positions []int
	if e.Step > 0 {
		for p := e.Start; p < e.Stop; p += e.Step {
			positions = append(positions, p)
		}
		return positions
	}
	for p := e.Start; p > e.Stop; p += e.Step {
		positions = append(positions, p)
	}
	return positions
}

// References expands the expression into individual placement references.
func (e *Expression) References() []Reference {
	positions := e.Positions()
	refs := make([]Reference, len(positions))
	for i, p := range positions {
		refs[i] = Reference{StageID: e.StageID, Position: p}
	}
	return refs
}

// ResolveReferences parses every expression and concatenates the expanded references.
// A reference may appear only once across the whole list.
func ResolveReferences(expressions []string) ([]Reference, error) {
	var refs []Reference
	seen := make(map[Reference]struct{})
	for _, literal := range expressions {
		expr, err := ParseExpression(literal)
		if err != nil {
			return nil, err
		}
		for _, ref := range expr.References() {
			if _, ok := seen[ref]; ok {
				return nil, &DuplicateReferenceError{StageID: ref.StageID, Position: ref.Position}
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Resolve returns the placements entry at position. Missing or undecided entries
// fail with InsufficientParticipantsError.
func Resolve(stageID string, placements [][]int, position int) ([]int, error) {
	if position < 0 || position >= len(placements) || len(placements[position]) == 0 {
		return nil, &InsufficientParticipantsError{StageID: stageID, Position: position}
	}
	return placements[position], nil
}

// Unwrap collapses a single-participant entry to that participant.
// Tied groups report false.
func Unwrap(entry []int) (int, bool) {
	if len(entry) != 1 {
		return 0, false
	}
	return entry[0], true
}

// Ordinal renders a zero-based position as "1st", "2nd", ...
func Ordinal(position int) string {
	n := position + 1
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// DescribeExpression renders an expression like "1st, 2nd of Main Round".
// stageNames maps identifiers to display names; unknown identifiers are used verbatim.
func DescribeExpression(literal string, stageNames map[string]string) (string, error) {
	expr, err := ParseExpression(literal)
	if err != nil {
		return "", err
	}
	positions := expr.Positions()
	ordinals := make([]string, len(positions))
	for i, p := range positions {
		ordinals[i] = Ordinal(p)
	}
	name := expr.StageID
	if n, ok := stageNames[expr.StageID]; ok && n != "" {
		name = n
	}
	return fmt.Sprintf("%s of %s", strings.Join(ordinals, ", "), name), nil
}
