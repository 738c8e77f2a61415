package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/rstms/mcfs/image"
)

func newExtractCmd(a *app) *cobra.Command {
	var output string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "extract FILE...",
		Short: "copy files out of the card",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && len(args) > 1 {
				return fmt.Errorf("only one file may be extracted with --output")
			}
			return a.withImage(true, func(img *image.Image) error {
				for _, name := range args {
					switch {
					case toStdout:
						data, err := img.ReadFile(name)
						if err != nil {
							return err
						}
						if _, err := a.stdout.Write(data); err != nil {
							return err
						}
					case output != "":
						if err := img.ExtractFile(name, output); err != nil {
							return err
						}
					default:
						if err := img.ExtractFile(name, path.Base(name)); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "host file to write")
	cmd.Flags().BoolVarP(&toStdout, "stdout", "p", false, "write the file contents to stdout")
	return cmd
}
