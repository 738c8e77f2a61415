package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/image"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PATH...",
		Short: "delete files and empty directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(false, func(img *image.Image) error {
				for _, name := range args {
					if err := img.Card().Delete(name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove PATH...",
		Short: "remove files or whole directory trees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(false, func(img *image.Image) error {
				for _, name := range args {
					if err := img.Card().Remove(name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
