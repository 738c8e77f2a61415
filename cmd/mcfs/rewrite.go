package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/card"
	"github.com/rstms/mcfs/image"
)

func newRewriteCmd(a *app) *cobra.Command {
	var noECC bool
	cmd := &cobra.Command{
		Use:   "rewrite DST",
		Short: "copy the card into a new, defragmented image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params *card.Params
			if noECC {
				err := a.withImage(true, func(img *image.Image) error {
					p := img.Card().Superblock().Params()
					p.WithECC = false
					params = &p
					return nil
				})
				if err != nil {
					return err
				}
			}
			if a.cfg.Image == "" {
				return errNoImage
			}
			return image.RewriteImage(a.fs, args[0], a.cfg.Image, params, a.options()...)
		},
	}
	cmd.Flags().BoolVar(&noECC, "no-ecc", false, "write the copy without the ECC spare area")
	return cmd
}
