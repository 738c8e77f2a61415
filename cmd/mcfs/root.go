package main

import (
	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/config"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcfs",
		Short: "PS2 memory card image tool",
		Long: `mcfs manipulates PlayStation 2 memory card images.

The image is named with -i or the "image" setting of mcfs.toml.
Settings are read from ./mcfs.{toml,yaml}, ~/.config/mcfs/ or
MCFS_* environment variables.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.loader = config.NewLoader(a.fs, a.home, a.configPath)
			flags := cmd.Root().PersistentFlags()
			for key, name := range map[string]string{
				"image":    "image",
				"verbose":  "verbose",
				"no_color": "no-color",
			} {
				if err := a.loader.BindFlag(key, flags.Lookup(name)); err != nil {
					return err
				}
			}
			cfg, err := a.loader.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.setup()
			return nil
		},
	}

	cmd.PersistentFlags().StringP("image", "i", "", "memory card image file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "trace card activity on stderr")
	cmd.PersistentFlags().Bool("no-color", false, "disable colored error output")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file")

	cmd.AddCommand(
		newLsCmd(a),
		newExtractCmd(a),
		newAddCmd(a),
		newCheckCmd(a),
		newClearCmd(a),
		newSetCmd(a),
		newDeleteCmd(a),
		newRemoveCmd(a),
		newDfCmd(a),
		newDirCmd(a),
		newFormatCmd(a),
		newMkdirCmd(a),
		newInfoCmd(a),
		newRewriteCmd(a),
	)
	return cmd
}
