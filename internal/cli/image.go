package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pixelarts/internal/canvas"
)

// ImageView is the JSON form of an image registry record.
type ImageView struct {
	Hash string     `json:"hash"`
	Key  canvas.Key `json:"key"`
	URL  string     `json:"url,omitempty"`
}

// NewImageCommand creates the image command group.
func NewImageCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Register and resolve short image hashes",
	}

	hash := &cobra.Command{
		Use:   "hash <key>",
		Short: "Register a canvas key and print its hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			key, err := canvas.ParseKey(args[0])
			if err != nil {
				return out.Fail("invalid key", err)
			}
			h, err := a.svc.ImageHash(a.ctx, key)
			if err != nil {
				return out.Fail("image hash failed", err)
			}
			return out.Emit(ImageView{Hash: h, Key: key}, func(w io.Writer) {
				fmt.Fprintln(w, h)
			})
		},
	}

	var plot bool
	resolve := &cobra.Command{
		Use:   "resolve <hash>",
		Short: "Print the key registered under a hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			key, err := a.svc.ResolveImage(a.ctx, args[0])
			if err != nil {
				return out.Fail("image lookup failed", err)
			}
			view := ImageView{Hash: args[0], Key: key, URL: a.svc.ImageURL(key, plot)}
			return out.Emit(view, func(w io.Writer) {
				fmt.Fprintln(w, key)
				fmt.Fprintln(w, view.URL)
			})
		},
	}
	resolve.Flags().BoolVar(&plot, "plot", false, "link the plot image")

	cmd.AddCommand(hash, resolve)
	return cmd
}

// NewConfigCommand creates the config command.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the config file,
PIXELARTS_* environment variables and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			cfg, err := opts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			return out.Emit(cfg, func(w io.Writer) {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				_ = enc.Encode(cfg)
				_ = enc.Close()
			})
		},
	}
}
