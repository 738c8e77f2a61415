package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/image"
)

func newFormatCmd(a *app) *cobra.Command {
	var noECC, force bool
	cmd := &cobra.Command{
		Use:   "format",
		Short: "create an empty memory card image",
		Long: `Create an empty memory card image. The geometry comes from the
page_size, pages_per_erase_block, pages_per_card and ecc settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Image == "" {
				return errNoImage
			}
			exists, err := afero.Exists(a.fs, a.cfg.Image)
			if err != nil {
				return err
			}
			if exists && !force {
				return fmt.Errorf("image exists, use --force to overwrite: %w", mcfs.ErrExists)
			}
			params := a.cfg.Params()
			if noECC {
				params.WithECC = false
			}
			img, err := image.CreateImage(a.fs, a.cfg.Image, params, a.options()...)
			if err != nil {
				return err
			}
			return img.Close()
		},
	}
	cmd.Flags().BoolVar(&noECC, "no-ecc", false, "format without the ECC spare area")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing image")
	return cmd
}
