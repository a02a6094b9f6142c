package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/replay"
)

// CanvasView is the JSON form of a canvas state.
type CanvasView struct {
	CanvasID string     `json:"canvas_id"`
	Seq      int64      `json:"seq,omitempty"`
	Size     int        `json:"size"`
	Key      canvas.Key `json:"key"`
	URL      string     `json:"url,omitempty"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions) *cobra.Command {
	var size int
	var author string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new all-white canvas",
		Long: `Create a canvas and write its initial snapshot.

Examples:
  pixelarts create
  pixelarts create --size 10 --author alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.svc.Create(a.ctx, size, author)
			if err != nil {
				return out.Fail("create failed", err)
			}
			view := CanvasView{CanvasID: entry.CanvasID, Seq: entry.Seq, Size: size, Key: entry.Key}
			return out.Emit(view, func(w io.Writer) {
				fmt.Fprintln(w, entry.CanvasID)
			})
		},
	}

	cmd.Flags().IntVar(&size, "size", canvas.DefaultSize, "edge length in cells (5, 10, 15, 20 or 25)")
	cmd.Flags().StringVar(&author, "author", "", "user id recorded on the snapshot")

	return cmd
}

// NewPaintCommand creates the paint command.
func NewPaintCommand(opts *RootOptions) *cobra.Command {
	var user, colour string

	cmd := &cobra.Command{
		Use:   "paint <canvas> <cell>...",
		Short: "Paint cells of a canvas",
		Long: `Paint one or more cells. Without --color the user's current colour is used.

Cells are numbered row by row from 0.

Examples:
  pixelarts paint 0190c1a2-... 12 --user alice
  pixelarts paint 0190c1a2-... 0 1 2 --color ff0000`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			cells, err := parseCells(args[1:])
			if err != nil {
				return out.Fail("invalid cell", err)
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			c := canvas.Color("")
			if colour != "" {
				if c, err = canvas.ParseColor(colour); err != nil {
					return out.Fail("invalid colour", err)
				}
			} else if c, err = a.svc.Colour(a.ctx, user); err != nil {
				return out.Fail("paint failed", err)
			}
			delta := make(canvas.Delta, len(cells))
			for i, idx := range cells {
				delta[i] = canvas.Cell{Index: idx, Color: c}
			}

			res, err := a.svc.PaintCells(a.ctx, args[0], user, delta)
			if err != nil {
				return out.Fail("paint failed", err)
			}
			out.VerboseLog("seq %d stored as %s", res.Entry.Seq, res.Entry.Kind())
			return out.Emit(res, func(w io.Writer) {
				fmt.Fprintf(w, "seq %d (%s)\n", res.Entry.Seq, res.Entry.Kind())
				writeGrid(w, res.Key)
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "painting user")
	cmd.Flags().StringVar(&colour, "color", "", "colour to paint instead of the user's")

	return cmd
}

func parseCells(args []string) ([]int, error) {
	cells := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, canvas.NewValidationError(fmt.Sprintf("cell %q is not a number", a))
		}
		cells = append(cells, n)
	}
	return cells, nil
}

// UndoView is the JSON form of an undo outcome.
type UndoView struct {
	CanvasID string     `json:"canvas_id"`
	Outcome  string     `json:"outcome"`
	Key      canvas.Key `json:"key,omitempty"`
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <canvas>",
		Short: "Remove the latest edit of a canvas",
		Long: `Remove the newest log entry and print the state it leaves behind.

The first snapshot of a canvas is never removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.Undo(a.ctx, args[0])
			if err != nil {
				return out.Fail("undo failed", err)
			}
			view := UndoView{CanvasID: args[0], Outcome: res.Outcome.String(), Key: res.Key}
			return out.Emit(view, func(w io.Writer) {
				switch res.Outcome {
				case replay.UndoEmpty:
					fmt.Fprintln(w, "canvas has no history")
				case replay.UndoNothing:
					fmt.Fprintln(w, "nothing to undo")
					writeGrid(w, res.Key)
				default:
					fmt.Fprintln(w, "undone")
					writeGrid(w, res.Key)
				}
			})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	var at int64
	var withURL, plot bool

	cmd := &cobra.Command{
		Use:   "show <canvas>",
		Short: "Print the state of a canvas",
		Long: `Print the current state of a canvas, or its state right after entry --at.

Examples:
  pixelarts show 0190c1a2-...
  pixelarts show 0190c1a2-... --at 3 --url`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var key canvas.Key
			if cmd.Flags().Changed("at") {
				key, err = a.svc.KeyAt(a.ctx, args[0], at)
			} else {
				key, err = a.svc.Current(a.ctx, args[0])
			}
			if err != nil {
				return out.Fail("show failed", err)
			}
			size, _ := key.Size()
			view := CanvasView{CanvasID: args[0], Size: size, Key: key}
			if cmd.Flags().Changed("at") {
				view.Seq = at
			}
			if withURL || plot {
				view.URL = a.svc.ImageURL(key, plot)
			}
			return out.Emit(view, func(w io.Writer) {
				writeGrid(w, key)
				if view.URL != "" {
					fmt.Fprintln(w, view.URL)
				}
			})
		},
	}

	cmd.Flags().Int64Var(&at, "at", 0, "show the state right after this seq")
	cmd.Flags().BoolVar(&withURL, "url", false, "print the image URL")
	cmd.Flags().BoolVar(&plot, "plot", false, "print the plot image URL")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <canvas>",
		Short: "List every log entry of a canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.History(a.ctx, args[0])
			if err != nil {
				return out.Fail("history failed", err)
			}
			return out.Emit(entries, func(w io.Writer) {
				for _, e := range entries {
					payload := e.Payload()
					if !e.IsDelta {
						payload = fmt.Sprintf("%d cells", e.Key.Cells())
					}
					fmt.Fprintf(w, "%4d  %-8s  %-12s  %s  %s\n",
						e.Seq, e.Kind(), orDash(e.AuthorID), e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), payload)
				}
			})
		},
	}
}

// CanvasList is the JSON form of the list command.
type CanvasList struct {
	Canvases []string `json:"canvases"`
	Created  int64    `json:"created"`
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List canvases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.svc.Canvases(a.ctx)
			if err != nil {
				return out.Fail("list failed", err)
			}
			n, err := a.svc.Count(a.ctx)
			if err != nil {
				return out.Fail("list failed", err)
			}
			return out.Emit(CanvasList{Canvases: ids, Created: n}, func(w io.Writer) {
				if len(ids) == 0 {
					fmt.Fprintln(w, "No canvases found.")
					return
				}
				for _, id := range ids {
					fmt.Fprintln(w, id)
				}
			})
		},
	}
}

// writeGrid prints a key one row per line.
func writeGrid(w io.Writer, key canvas.Key) {
	size, err := key.Size()
	if err != nil {
		fmt.Fprintln(w, key)
		return
	}
	colors := key.Colors()
	for row := 0; row < size; row++ {
		cells := make([]string, size)
		for col := range cells {
			cells[col] = string(colors[row*size+col])
		}
		fmt.Fprintln(w, strings.Join(cells, " "))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
