package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pixelarts/internal/canvas"
	"github.com/roach88/pixelarts/internal/decor"
)

// ColourView is the JSON form of a user's colour.
type ColourView struct {
	User   string       `json:"user"`
	Colour canvas.Color `json:"colour"`
}

// NewColourCommand creates the colour command group.
func NewColourCommand(opts *RootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:     "colour",
		Aliases: []string{"color"},
		Short:   "Read or change a user's painting colour",
	}
	cmd.PersistentFlags().StringVarP(&user, "user", "u", "", "user id")

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the user's colour (black until set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.svc.Colour(a.ctx, user)
			if err != nil {
				return out.Fail("colour lookup failed", err)
			}
			return out.Emit(ColourView{User: user, Colour: c}, func(w io.Writer) {
				fmt.Fprintln(w, c)
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <hex|preset>",
		Short: "Set the user's colour",
		Long: `Set the user's colour from a 6-digit hex value or a preset name.

Examples:
  pixelarts colour set --user alice ff8800
  pixelarts colour set --user alice red-orange`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			raw := args[0]
			if p, ok := a.palette.Lookup(raw); ok {
				raw = string(p.Hex)
			}
			c, err := a.svc.SetColour(a.ctx, user, raw)
			if err != nil {
				return out.Fail("colour update failed", err)
			}
			return out.Emit(ColourView{User: user, Colour: c}, func(w io.Writer) {
				fmt.Fprintln(w, c)
			})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

// NewPickerCommand creates the picker command.
func NewPickerCommand(opts *RootOptions) *cobra.Command {
	var user string
	var extras []string

	cmd := &cobra.Command{
		Use:   "picker",
		Short: "List the colour picker options for a user",
		Long: `List the options a colour picker would show: the presets, any extra
colours carried over, the user's current colour, and a custom entry.

Non-preset colours are named through the colour API and get a swatch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.decorated(); err != nil {
				return WrapExitError(ExitCommandError, "failed to start decorations", err)
			}

			options, err := a.svc.Picker(a.ctx, user, a.palette.ExtrasFrom(extras))
			if err != nil {
				return out.Fail("picker failed", err)
			}
			return out.Emit(options, func(w io.Writer) {
				for _, o := range options {
					mark := " "
					if o.Default {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %-8s %-24s %s\n", mark, o.Value, o.Label, o.Markup)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user id")
	cmd.Flags().StringSliceVar(&extras, "extra", nil, "extra colours to offer (hex)")

	return cmd
}

// NewDecorateCommand creates the decorate command.
func NewDecorateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decorate <hex>...",
		Short: "Create colour swatches in the asset store",
		Long: `Create the swatch asset for each colour, reusing existing ones.

Creations are spaced by cache.create_delay; the least recently used swatch
is deleted once cache.capacity is reached.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.decorated(); err != nil {
				return WrapExitError(ExitCommandError, "failed to start decorations", err)
			}

			assets := make([]decor.Asset, 0, len(args))
			for _, raw := range args {
				c, err := canvas.ParseColor(raw)
				if err != nil {
					return out.Fail("invalid colour", err)
				}
				asset, err := a.svc.Swatch(a.ctx, c)
				if err != nil {
					return out.Fail("swatch failed", err)
				}
				assets = append(assets, asset)
			}
			return out.Emit(assets, func(w io.Writer) {
				for _, asset := range assets {
					fmt.Fprintln(w, asset.Markup)
				}
			})
		},
	}
}
