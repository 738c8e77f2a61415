package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/card"
	"github.com/rstms/mcfs/image"
)

type infoReport struct {
	Image    string    `toml:"image" yaml:"image"`
	Size     int64     `toml:"size" yaml:"size"`
	Free     int64     `toml:"free" yaml:"free"`
	Geometry card.Info `toml:"geometry" yaml:"geometry"`
}

func newInfoCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "show the card geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			return a.withImage(true, func(img *image.Image) error {
				free, err := img.Card().DF()
				if err != nil {
					return err
				}
				info := img.Card().Info()
				if output != "text" {
					return a.encode(output, infoReport{
						Image:    a.cfg.Image,
						Size:     img.Card().Superblock().Params().ImageSize(),
						Free:     free,
						Geometry: info,
					})
				}
				a.printf("%s\n", img)
				for _, field := range []struct {
					name  string
					value interface{}
				}{
					{"version", info.Version},
					{"page size", info.PageSize},
					{"pages per cluster", info.PagesPerCluster},
					{"pages per erase block", info.PagesPerEraseBlock},
					{"clusters per card", info.ClustersPerCard},
					{"allocatable offset", info.AllocatableOffset},
					{"allocatable limit", info.AllocatableLimit},
					{"root cluster", info.RootDirCluster},
					{"ecc", info.ECC},
					{"bytes free", free},
				} {
					a.printf("%-22s %v\n", field.name+":", field.value)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&output, "output", "text", "output format: text, toml or yaml")
	return cmd
}
