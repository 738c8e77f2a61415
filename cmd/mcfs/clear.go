package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/image"
)

func newClearCmd(a *app) *cobra.Command {
	var exclude []string
	cmd := &cobra.Command{
		Use:   "clear [-x NAME]... [DIR]",
		Short: "delete everything in a directory",
		Long: `Delete every entry of DIR, the root by default, except the
entries named with -x.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			return a.withImage(false, func(img *image.Image) error {
				return img.Card().Clear(dir, exclude)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&exclude, "exclude", "x", nil, "entry to keep (repeatable)")
	return cmd
}
