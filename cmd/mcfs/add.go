package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/image"
)

func newAddCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "add [-d DIR] FILE...",
		Short: "copy host files or directories into the card",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(false, func(img *image.Image) error {
				for _, src := range args {
					info, err := a.fs.Stat(src)
					if err != nil {
						return err
					}
					if info.IsDir() {
						err = img.Import(dir, src)
					} else {
						err = img.AddFile(dir+"/", src)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "directory", "d", "/", "card directory to add to")
	return cmd
}
