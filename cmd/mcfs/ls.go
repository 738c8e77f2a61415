package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/image"
)

func newLsCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls [DIR...]",
		Short: "list directory contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"/"}
			}
			return a.withImage(true, func(img *image.Image) error {
				for i, dir := range args {
					if len(args) > 1 || recursive {
						if i > 0 {
							a.printf("\n")
						}
						a.printf("%s:\n", dir)
					}
					if err := a.list(img, dir, recursive); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "list subdirectories")
	return cmd
}

func (a *app) list(img *image.Image, dir string, recursive bool) error {
	entries, err := img.Card().List(dir)
	if err != nil {
		return err
	}
	var subdirs []string
	for _, e := range entries {
		a.printf("%s\n", a.lsLine(e))
		if recursive && e.IsDir() && e.Name != "." && e.Name != ".." {
			subdirs = append(subdirs, path.Join(dir, e.Name))
		}
	}
	for _, sub := range subdirs {
		a.printf("\n%s:\n", sub)
		if err := a.list(img, sub, recursive); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) lsLine(e mcfs.DirEntry) string {
	return fmt.Sprintf("%s %7d %s %s", e.Mode, e.Length,
		e.Modified.Time().In(a.location).Format("2006-01-02 15:04:05"), e.Name)
}
