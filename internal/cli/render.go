package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// RenderView is the JSON form of a timelapse result.
type RenderView struct {
	CanvasID string `json:"canvas_id"`
	Path     string `json:"path"`
	Frames   int    `json:"frames"`
	Reused   bool   `json:"reused"`
	Width    int    `json:"width,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "render <canvas>",
		Short: "Render the timelapse video of a canvas",
		Long: `Render every state of a canvas, oldest first, into an MP4 via ffmpeg.

An existing video in the preview directory is reused unless --force is set.

Exit codes:
  0 - Video available
  1 - Canvas unknown or encoder failed
  2 - Command error (config, database)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if force {
				if err := a.renderer.Discard(args[0]); err != nil {
					return out.Fail("render failed", err)
				}
			}
			res, err := a.svc.Timelapse(a.ctx, args[0])
			if err != nil {
				return out.Fail("render failed", err)
			}
			view := RenderView{
				CanvasID: res.CanvasID,
				Path:     res.Path,
				Frames:   res.Frames,
				Reused:   res.Reused,
				Width:    res.Layout.Width,
			}
			return out.Emit(view, func(w io.Writer) {
				if res.Reused {
					fmt.Fprintf(w, "reused %s\n", res.Path)
					return
				}
				fmt.Fprintf(w, "rendered %d frames to %s\n", res.Frames, res.Path)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard an existing video first")

	return cmd
}
