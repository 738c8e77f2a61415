package main

import (
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rstms/mcfs/image"
)

func newDirCmd(a *app) *cobra.Command {
	var ascii bool
	cmd := &cobra.Command{
		Use:   "dir",
		Short: "list the saves on the card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withImage(true, func(img *image.Image) error {
				saves, err := img.Card().Saves()
				if err != nil {
					return err
				}
				for _, save := range saves {
					title := save.Title
					if ascii {
						title[0], title[1] = asciiOnly(title[0]), asciiOnly(title[1])
					}
					protection := "Not Protected"
					if save.Protected {
						protection = "Protected"
					}
					a.printf("%-32s %s\n", save.Name, title[0])
					a.printf("%4dKB %-25s %s\n", save.Size/1024, protection, title[1])
					a.printf("\n")
				}
				free, err := img.Card().DF()
				if err != nil {
					return err
				}
				p := message.NewPrinter(language.English)
				a.printf("%s", p.Sprintf("%d KB Free\n", free/1024))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&ascii, "ascii", "a", false, "replace characters outside ASCII with '?'")
	return cmd
}

func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0x7e {
			return '?'
		}
		return r
	}, s)
}
