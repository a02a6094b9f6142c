package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/canvasd"
)

// AssertionError provides detailed information about a failed assertion.
type AssertionError struct {
	Type     string
	Expected any
	Actual   any
	Detail   string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s assertion failed", e.Type)
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	fmt.Fprintf(&b, ": expected %v, got %v", e.Expected, e.Actual)
	return b.String()
}

// AssertionContext gives assertions access to the service the scenario ran
// against.
type AssertionContext struct {
	Ctx      context.Context
	Service  *canvasd.Service
	Canvases map[string]string
}

func (a *AssertionContext) canvasID(alias string) string {
	if id, ok := a.Canvases[alias]; ok {
		return id
	}
	return alias
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertLogShape:
			err = assertLogShape(result, assertion)
		case AssertOpCount:
			err = assertOpCount(result.Trace, assertion)
		case AssertKey, AssertVerified, AssertUserColour:
			if actx == nil || actx.Service == nil {
				err = fmt.Errorf("%s requires a service", assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertKey:
				err = assertKey(actx, assertion)
			case AssertVerified:
				err = assertVerified(actx, assertion)
			default:
				err = assertUserColour(actx, assertion)
			}
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}

	return errors
}

// Shape renders a log as one S per snapshot and one D per delta.
func Shape(entries []canvas.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.IsDelta {
			b.WriteByte('D')
		} else {
			b.WriteByte('S')
		}
	}
	return b.String()
}

func assertLogShape(result *Result, a Assertion) error {
	var shape string
	if l, ok := result.Log(a.Canvas); ok {
		shape = Shape(l.Entries)
	}
	if shape != a.Shape {
		return &AssertionError{Type: AssertLogShape, Expected: a.Shape, Actual: shape, Detail: a.Canvas}
	}
	return nil
}

func assertOpCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op && event.Error == "" {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{Type: AssertOpCount, Expected: a.Count, Actual: count, Detail: a.Op}
	}
	return nil
}

func assertKey(actx *AssertionContext, a Assertion) error {
	id := actx.canvasID(a.Canvas)
	var key canvas.Key
	var err error
	if a.Seq != nil {
		key, err = actx.Service.KeyAt(actx.Ctx, id, *a.Seq)
	} else {
		key, err = actx.Service.Current(actx.Ctx, id)
	}
	if err != nil {
		return fmt.Errorf("key of %s: %w", a.Canvas, err)
	}

	var mismatches []string
	for i, got := range key.Colors() {
		want, ok := a.Cells[i]
		if !ok {
			if a.Fill == "" {
				continue
			}
			want = a.Fill
		}
		if string(got) != strings.ToLower(want) {
			mismatches = append(mismatches, fmt.Sprintf("%d:%s", i, got))
		}
	}
	for i := range a.Cells {
		if i < 0 || i >= key.Cells() {
			mismatches = append(mismatches, fmt.Sprintf("%d:missing", i))
		}
	}
	if len(mismatches) > 0 {
		sort.Strings(mismatches)
		return &AssertionError{
			Type:     AssertKey,
			Expected: expectedCells(a),
			Actual:   strings.Join(mismatches, ","),
			Detail:   a.Canvas,
		}
	}
	return nil
}

func expectedCells(a Assertion) string {
	idx := make([]int, 0, len(a.Cells))
	for i := range a.Cells {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx)+1)
	if a.Fill != "" {
		parts = append(parts, "*:"+a.Fill)
	}
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("%d:%s", i, a.Cells[i]))
	}
	return strings.Join(parts, ",")
}

func assertVerified(actx *AssertionContext, a Assertion) error {
	r, err := actx.Service.Verify(actx.Ctx, actx.canvasID(a.Canvas))
	if err != nil {
		return fmt.Errorf("verify %s: %w", a.Canvas, err)
	}
	if r.Entries == 0 {
		return &AssertionError{Type: AssertVerified, Expected: "a log", Actual: "no entries", Detail: a.Canvas}
	}
	if !r.OK() {
		msgs := make([]string, len(r.Problems))
		for i, p := range r.Problems {
			msgs[i] = p.Message
		}
		return &AssertionError{Type: AssertVerified, Expected: "no problems", Actual: strings.Join(msgs, "; "), Detail: a.Canvas}
	}
	return nil
}

func assertUserColour(actx *AssertionContext, a Assertion) error {
	got, err := actx.Service.Colour(actx.Ctx, a.User)
	if err != nil {
		return fmt.Errorf("colour of %s: %w", a.User, err)
	}
	if string(got) != strings.ToLower(a.Color) {
		return &AssertionError{Type: AssertUserColour, Expected: a.Color, Actual: got, Detail: a.User}
	}
	return nil
}
