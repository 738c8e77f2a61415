package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/image"
)

func newMkdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir DIR...",
		Short: "create directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(false, func(img *image.Image) error {
				for _, name := range args {
					if err := img.Mkdir(name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
