package replay

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixelarts/internal/canvas"
)

func snapshot(seq int64, k canvas.Key) canvas.Entry {
	return canvas.Entry{CanvasID: "c1", Seq: seq, Key: k}
}

func delta(seq int64, cells ...canvas.Cell) canvas.Entry {
	return canvas.Entry{CanvasID: "c1", Seq: seq, IsDelta: true, Delta: cells}
}

func black() canvas.Key {
	return canvas.Key(strings.Repeat("000000", 25))
}

func TestFold_EndToEnd(t *testing.T) {
	entries := []canvas.Entry{
		snapshot(0, black()),
		delta(1, canvas.Cell{Index: 0, Color: "ff0000"}),
		delta(2, canvas.Cell{Index: 1, Color: "00ff00"}),
	}

	key, err := Fold(entries)
	require.NoError(t, err)
	assert.Equal(t, canvas.Color("ff0000"), key.At(0))
	assert.Equal(t, canvas.Color("00ff00"), key.At(1))
	assert.Equal(t, canvas.Color("000000"), key.At(2))

	res, remaining, err := Undo(entries)
	require.NoError(t, err)
	assert.Equal(t, UndoApplied, res.Outcome)
	assert.Len(t, remaining, 2)
	assert.Equal(t, canvas.Color("ff0000"), res.Key.At(0))
	assert.Equal(t, canvas.Color("000000"), res.Key.At(1))
	assert.Len(t, entries, 3, "input must not be modified")
}

func TestFold_StartsAtLatestSnapshot(t *testing.T) {
	later := canvas.Key(strings.Repeat("ffffff", 25))
	entries := []canvas.Entry{
		snapshot(0, black()),
		delta(1, canvas.Cell{Index: 3, Color: "123456"}),
		snapshot(2, later),
		delta(3, canvas.Cell{Index: 4, Color: "abcdef"}),
	}

	key, err := Fold(entries)
	require.NoError(t, err)
	assert.Equal(t, canvas.Color("ffffff"), key.At(3), "deltas before the snapshot are ignored")
	assert.Equal(t, canvas.Color("abcdef"), key.At(4))
}

func TestFold_LastWriteWinsWithinDelta(t *testing.T) {
	entries := []canvas.Entry{
		snapshot(0, black()),
		delta(1,
			canvas.Cell{Index: 7, Color: "111111"},
			canvas.Cell{Index: 7, Color: "222222"},
		),
	}
	key, err := Fold(entries)
	require.NoError(t, err)
	assert.Equal(t, canvas.Color("222222"), key.At(7))
}

func TestFold_Errors(t *testing.T) {
	_, err := Fold(nil)
	assert.True(t, canvas.IsNotFound(err))

	_, err = Fold([]canvas.Entry{delta(1, canvas.Cell{Index: 0, Color: "ff0000"})})
	assert.True(t, canvas.IsInconsistentLog(err))

	_, err = Fold([]canvas.Entry{
		snapshot(0, black()),
		delta(1, canvas.Cell{Index: 99, Color: "ff0000"}),
	})
	assert.True(t, canvas.IsValidation(err))
}

func TestFoldAll_MatchesFoldOfEveryPrefix(t *testing.T) {
	entries := randomHistory(t, 1, 40)

	keys, err := FoldAll(entries)
	require.NoError(t, err)
	require.Len(t, keys, len(entries))

	for i := range entries {
		want, err := Fold(entries[:i+1])
		require.NoError(t, err)
		assert.Equal(t, want, keys[i], "prefix ending at %d", i)
	}
}

func TestFoldAll_RejectsLeadingDelta(t *testing.T) {
	_, err := FoldAll([]canvas.Entry{delta(0, canvas.Cell{Index: 0, Color: "ff0000"})})
	assert.True(t, canvas.IsInconsistentLog(err))
}

// The folded key equals the key obtained by applying every edit directly.
func TestFold_RoundTripLaw(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		direct := black()
		entries := []canvas.Entry{snapshot(0, direct)}
		run := 0
		for seq := int64(1); seq <= 60; seq++ {
			d := canvas.Delta{{
				Index: rng.Intn(25),
				Color: canvas.ColorFromInt(rng.Int63n(0x1000000)),
			}}
			next, err := direct.Apply(d)
			require.NoError(t, err)
			direct = next

			if run < canvas.MaxDeltaRun {
				entries = append(entries, delta(seq, d...))
				run++
			} else {
				entries = append(entries, snapshot(seq, direct))
				run = 0
			}
		}

		key, err := Fold(entries)
		require.NoError(t, err)
		assert.Equal(t, direct, key, "seed %d", seed)
	}
}

func TestKeyAt(t *testing.T) {
	entries := []canvas.Entry{
		snapshot(0, black()),
		delta(1, canvas.Cell{Index: 0, Color: "ff0000"}),
		delta(2, canvas.Cell{Index: 1, Color: "00ff00"}),
	}

	k, err := KeyAt(entries, 1)
	require.NoError(t, err)
	assert.Equal(t, canvas.Color("ff0000"), k.At(0))
	assert.Equal(t, canvas.Color("000000"), k.At(1))

	k, err = KeyAt(entries, 0)
	require.NoError(t, err)
	assert.Equal(t, black(), k)

	_, err = KeyAt(entries, 7)
	assert.True(t, canvas.IsNotFound(err))
}

func TestUndo_Outcomes(t *testing.T) {
	res, remaining, err := Undo(nil)
	require.NoError(t, err)
	assert.Equal(t, UndoEmpty, res.Outcome)
	assert.Empty(t, remaining)

	one := []canvas.Entry{snapshot(0, black())}
	res, remaining, err = Undo(one)
	require.NoError(t, err)
	assert.Equal(t, UndoNothing, res.Outcome)
	assert.Equal(t, black(), res.Key)
	assert.Len(t, remaining, 1)

	// Undo down to a tail with no snapshot.
	bad := []canvas.Entry{
		delta(1, canvas.Cell{Index: 0, Color: "ff0000"}),
		delta(2, canvas.Cell{Index: 1, Color: "ff0000"}),
	}
	_, _, err = Undo(bad)
	assert.True(t, canvas.IsInconsistentLog(err))
}

func TestUndo_RepeatedWalksBackThroughSnapshots(t *testing.T) {
	entries := randomHistory(t, 7, 25)
	keys, err := FoldAll(entries)
	require.NoError(t, err)

	for i := len(entries) - 1; i > 0; i-- {
		var res UndoResult
		res, entries, err = Undo(entries)
		require.NoError(t, err)
		require.Equal(t, UndoApplied, res.Outcome)
		assert.Equal(t, keys[i-1], res.Key)
	}

	res, _, err := Undo(entries)
	require.NoError(t, err)
	assert.Equal(t, UndoNothing, res.Outcome)
}

func TestAfterRemoval(t *testing.T) {
	res, err := AfterRemoval(nil, false)
	require.NoError(t, err)
	assert.Equal(t, UndoEmpty, res.Outcome)

	tail := []canvas.Entry{
		snapshot(0, black()),
		delta(1, canvas.Cell{Index: 0, Color: "ff0000"}),
	}
	res, err = AfterRemoval(tail, true)
	require.NoError(t, err)
	assert.Equal(t, UndoApplied, res.Outcome)
	assert.Equal(t, canvas.Color("ff0000"), res.Key.At(0))

	res, err = AfterRemoval(tail[:1], false)
	require.NoError(t, err)
	assert.Equal(t, UndoNothing, res.Outcome)

	_, err = AfterRemoval(tail[1:], true)
	assert.True(t, canvas.IsInconsistentLog(err))
}

func TestUndoOutcome_String(t *testing.T) {
	assert.Equal(t, "empty", UndoEmpty.String())
	assert.Equal(t, "nothing", UndoNothing.String())
	assert.Equal(t, "applied", UndoApplied.String())
	assert.Equal(t, "unknown", UndoOutcome(42).String())
}

// randomHistory builds a compacted history of n entries.
func randomHistory(t *testing.T, seed int64, n int) []canvas.Entry {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	key := black()
	entries := []canvas.Entry{snapshot(0, key)}
	run := 0
	for seq := int64(1); seq < int64(n); seq++ {
		d := canvas.Delta{{Index: rng.Intn(25), Color: canvas.ColorFromInt(rng.Int63n(0x1000000))}}
		next, err := key.Apply(d)
		require.NoError(t, err)
		key = next
		if run < canvas.MaxDeltaRun {
			entries = append(entries, delta(seq, d...))
			run++
		} else {
			entries = append(entries, snapshot(seq, key))
			run = 0
		}
	}
	return entries
}
