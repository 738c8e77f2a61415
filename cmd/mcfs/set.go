package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/image"
)

func newSetCmd(a *app) *cobra.Command {
	var unset bool
	var hex string
	bits := []struct {
		name      string
		shorthand string
		usage     string
		mode      mcfs.Mode
		value     *bool
	}{
		{"read", "r", "readable", mcfs.ModeRead, new(bool)},
		{"write", "w", "writable", mcfs.ModeWrite, new(bool)},
		{"execute", "x", "executable", mcfs.ModeExecute, new(bool)},
		{"protected", "K", "copy protected", mcfs.ModeProtected, new(bool)},
		{"psx", "P", "PlayStation save", mcfs.ModePS1, new(bool)},
		{"pocketstation", "", "PocketStation save", mcfs.ModePocketStation, new(bool)},
		{"hidden", "H", "hidden", mcfs.ModeHidden, new(bool)},
	}
	cmd := &cobra.Command{
		Use:   "set [FLAGS] PATH...",
		Short: "set or clear mode bits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode mcfs.Mode
			for _, b := range bits {
				if *b.value {
					mode |= b.mode
				}
			}
			if hex != "" {
				v, err := strconv.ParseUint(hex, 16, 16)
				if err != nil {
					return fmt.Errorf("bad mode bits %q: %w", hex, mcfs.ErrInvalidArgument)
				}
				mode |= mcfs.Mode(v)
			}
			if mode == 0 {
				return fmt.Errorf("no mode bits given: %w", mcfs.ErrInvalidArgument)
			}
			changes := mcfs.AttrChanges{Set: mode}
			if unset {
				changes = mcfs.AttrChanges{Clear: mode}
			}
			return a.withImage(false, func(img *image.Image) error {
				for _, name := range args {
					if err := img.SetAttr(name, changes); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	for _, b := range bits {
		cmd.Flags().BoolVarP(b.value, b.name, b.shorthand, false, b.usage)
	}
	cmd.Flags().StringVarP(&hex, "mode", "X", "", "mode bits in hex")
	cmd.Flags().BoolVarP(&unset, "clear", "c", false, "clear the bits instead of setting them")
	return cmd
}
