package harness

import (
	"fmt"

	"github.com/roach88/pixelarts/internal/canvas"
)

// TraceEvent records what one executed step did.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Canvas  string `json:"canvas,omitempty"`
	User    string `json:"user,omitempty"`
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Color   string `json:"color,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e TraceEvent) String() string {
	subject := e.Canvas
	if subject == "" {
		subject = e.User
	}
	head := fmt.Sprintf("%d %s %s ->", e.Step, e.Op, subject)
	switch {
	case e.Error != "":
		return head + " error " + e.Error
	case e.Outcome != "":
		return head + " " + e.Outcome
	case e.Kind != "":
		return fmt.Sprintf("%s seq %d %s", head, e.Seq, e.Kind)
	}
	return head + " " + e.Color
}

// CanvasLog is the final event log of one scenario canvas.
type CanvasLog struct {
	Alias   string         `json:"alias"`
	ID      string         `json:"id"`
	Entries []canvas.Entry `json:"entries"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per executed step, repeats included.
	Trace []TraceEvent `json:"trace"`

	// Errors holds the failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Logs holds the final log of every created canvas, in creation order.
	Logs []CanvasLog `json:"logs"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Logs:   []CanvasLog{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Log returns the final log of the canvas with the given alias.
func (r *Result) Log(alias string) (CanvasLog, bool) {
	for _, l := range r.Logs {
		if l.Alias == alias {
			return l, true
		}
	}
	return CanvasLog{}, false
}
