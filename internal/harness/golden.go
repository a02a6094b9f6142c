package harness

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders a result as the plain text stored in golden files:
// the trace, one line per executed step, then every canvas log oldest
// first with its author, timestamp and payload.
func Transcript(name string, result *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintln(&b, "steps:")
	for _, event := range result.Trace {
		fmt.Fprintf(&b, "  %s\n", event)
	}
	for _, l := range result.Logs {
		fmt.Fprintf(&b, "canvas %s = %s\n", l.Alias, l.ID)
		for _, e := range l.Entries {
			author := e.AuthorID
			if author == "" {
				author = "-"
			}
			fmt.Fprintf(&b, "  %d %s %s %s %s\n",
				e.Seq, e.Kind(), author, e.Timestamp.UTC().Format(time.RFC3339), e.Payload())
		}
	}
	return b.Bytes()
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden. Failed expectations or
// assertions fail the test as well.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares the transcript of an existing result against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Transcript(scenarioName, result))
}
