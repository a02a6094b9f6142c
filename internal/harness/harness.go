package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/canvasd"
	"github.com/roach88/pixelarts/internal/store"
	"github.com/roach88/pixelarts/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and sequential canvas ids.
type Harness struct {
	svc *canvasd.Service

	// aliases maps scenario canvas names to generated ids.
	aliases map[string]string
	order   []string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database and service
//  2. Execute steps, checking each expect clause
//  3. Collect the final log of every created canvas
//  4. Evaluate assertions
//
// A domain failure (*canvas.Error) is recorded in the trace and checked
// against the step's expect clause. Any other failure aborts the run.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	clock := testutil.NewDeterministicClock(testutil.Epoch, time.Second)
	opts := []store.Option{store.WithClock(clock.Now)}
	if scenario.DeltaRunLimit > 0 {
		opts = append(opts, store.WithDeltaRunLimit(scenario.DeltaRunLimit))
	}
	st, err := store.Open(":memory:", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := testutil.NewSequentialIDs("canvas")
	h := &Harness{
		aliases: make(map[string]string),
		svc: canvasd.New(canvasd.Deps{
			Store:  st,
			IDs:    ids,
			Logger: logger,
		}),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	for _, alias := range h.order {
		id := h.aliases[alias]
		entries, err := st.History(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read log of %s: %w", alias, err)
		}
		result.Logs = append(result.Logs, CanvasLog{Alias: alias, ID: id, Entries: entries})
	}

	actx := &AssertionContext{Ctx: ctx, Service: h.svc, Canvases: h.aliases}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	runs := step.Repeat
	if runs == 0 {
		runs = 1
	}

	var event TraceEvent
	for n := 0; n < runs; n++ {
		var err error
		event, err = h.apply(ctx, i, step)
		if err != nil {
			var cerr *canvas.Error
			if !errors.As(err, &cerr) {
				return err
			}
			event.Error = string(cerr.Code)
		}
		result.Trace = append(result.Trace, event)
	}

	if step.Expect != nil {
		for _, msg := range checkExpect(i, step.Expect, event) {
			result.AddError(msg)
		}
	} else if event.Error != "" {
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error %s", i, step.Op, event.Error))
	}
	return nil
}

// apply runs a step once. The returned event is filled in as far as the
// step got, so a failing step still identifies itself in the trace.
func (h *Harness) apply(ctx context.Context, i int, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: i, Op: step.Op, Canvas: step.Canvas}

	switch step.Op {
	case OpCreate:
		if _, ok := h.aliases[step.Canvas]; ok {
			return event, fmt.Errorf("canvas %q already created", step.Canvas)
		}
		size := step.Size
		if size == 0 {
			size = canvas.DefaultSize
		}
		entry, err := h.svc.Create(ctx, size, step.User)
		if err != nil {
			return event, err
		}
		h.aliases[step.Canvas] = entry.CanvasID
		h.order = append(h.order, step.Canvas)
		event.Seq, event.Kind = entry.Seq, entry.Kind()

	case OpPaint:
		c, err := h.paintColour(ctx, step)
		if err != nil {
			return event, err
		}
		delta := make(canvas.Delta, 0, len(step.Cells))
		for _, idx := range step.Cells {
			delta = append(delta, canvas.Cell{Index: idx, Color: c})
		}
		res, err := h.svc.PaintCells(ctx, h.canvasID(step.Canvas), step.User, delta)
		if err != nil {
			return event, err
		}
		event.Seq, event.Kind = res.Entry.Seq, res.Entry.Kind()

	case OpUndo:
		res, err := h.svc.Undo(ctx, h.canvasID(step.Canvas))
		if err != nil {
			return event, err
		}
		event.Outcome = res.Outcome.String()

	case OpSetColour:
		event.User = step.User
		c, err := h.svc.SetColour(ctx, step.User, step.Color)
		if err != nil {
			return event, err
		}
		event.Color = string(c)

	default:
		return event, fmt.Errorf("unknown op %q", step.Op)
	}
	return event, nil
}

func (h *Harness) paintColour(ctx context.Context, step Step) (canvas.Color, error) {
	if step.Color != "" {
		return canvas.ParseColor(step.Color)
	}
	return h.svc.Colour(ctx, step.User)
}

// canvasID resolves an alias. Unknown aliases are used as ids verbatim,
// which addresses a canvas with no history.
func (h *Harness) canvasID(alias string) string {
	if id, ok := h.aliases[alias]; ok {
		return id
	}
	return alias
}

func checkExpect(i int, want *Expect, got TraceEvent) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("step %d (%s): ", i, got.Op)+fmt.Sprintf(format, args...))
	}

	if want.Error != got.Error {
		if want.Error == "" {
			fail("unexpected error %s", got.Error)
		} else {
			fail("expected error %s, got %q", want.Error, got.Error)
		}
		return errs
	}
	if want.Seq != nil && *want.Seq != got.Seq {
		fail("expected seq %d, got %d", *want.Seq, got.Seq)
	}
	if want.Kind != "" && want.Kind != got.Kind {
		fail("expected %s, got %q", want.Kind, got.Kind)
	}
	if want.Outcome != "" && want.Outcome != got.Outcome {
		fail("expected outcome %s, got %q", want.Outcome, got.Outcome)
	}
	return errs
}
