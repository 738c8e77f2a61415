package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/image"
)

type checkReport struct {
	Image    string         `toml:"image" yaml:"image"`
	Findings []mcfs.Finding `toml:"findings" yaml:"findings"`
}

func newCheckCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "check the card for file system errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			return a.withImage(true, func(img *image.Image) error {
				findings, err := img.Card().Check()
				if err != nil {
					return err
				}
				if output != "text" {
					return a.encode(output, checkReport{Image: a.cfg.Image, Findings: findings})
				}
				return a.printFindings(findings)
			})
		},
	}
	cmd.Flags().StringVar(&output, "output", "text", "output format: text, toml or yaml")
	return cmd
}

func (a *app) printFindings(findings []mcfs.Finding) error {
	if len(findings) == 0 {
		a.printf("No errors found.\n")
		return nil
	}
	for _, f := range findings {
		if f.Kind == mcfs.FindingRootDamaged {
			return f
		}
	}
	for _, f := range findings {
		a.printf("%v\n", f)
	}
	return fmt.Errorf("%d errors found", len(findings))
}

func checkOutput(output string) error {
	switch output {
	case "text", "toml", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q: %w", output, mcfs.ErrInvalidArgument)
}

// encode writes v to stdout in the toml or yaml format.
func (a *app) encode(output string, v interface{}) error {
	var data []byte
	var err error
	switch output {
	case "toml":
		data, err = toml.Marshal(v)
	case "yaml":
		data, err = yaml.Marshal(v)
	default:
		return checkOutput(output)
	}
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}
