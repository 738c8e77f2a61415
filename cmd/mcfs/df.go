package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/image"
)

func newDfCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "df",
		Short: "show the free space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(true, func(img *image.Image) error {
				free, err := img.Card().DF()
				if err != nil {
					return err
				}
				a.printf("%s: %d bytes free.\n", img.Filename, free)
				return nil
			})
		},
	}
}
