package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/rstms/mcfs"
	"github.com/rstms/mcfs/card"
	"github.com/rstms/mcfs/config"
	"github.com/rstms/mcfs/image"
)

var errNoImage = errors.New("no memory card image given, use -i")

// app carries the state shared by all commands of one invocation.
type app struct {
	fs         afero.Fs
	home       string
	stdout     io.Writer
	stderr     io.Writer
	clock      mcfs.Clock
	location   *time.Location
	configPath string
	loader     *config.Loader
	cfg        *config.Config
}

func newApp(fs afero.Fs, home string, stdout, stderr io.Writer) *app {
	return &app{
		fs:       fs,
		home:     home,
		stdout:   stdout,
		stderr:   stderr,
		location: time.Local,
		cfg:      &config.Config{},
	}
}

func (a *app) run(args []string) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	if err := cmd.Execute(); err != nil {
		a.report(err)
		return 1
	}
	return 0
}

// report writes the "<image>: <message>" error line.
func (a *app) report(err error) {
	prefix := "mcfs"
	if a.cfg.Image != "" {
		prefix = a.cfg.Image
	}
	red := color.New(color.FgRed)
	for _, e := range multierr.Errors(err) {
		red.Fprintf(a.stderr, "%s: %v\n", prefix, e)
	}
}

// setup applies the loaded configuration to the process.
func (a *app) setup() {
	if a.cfg.NoColor {
		color.NoColor = true
	}
	if a.cfg.Verbose {
		card.SetLogger(log.New(a.stderr, "card: ", 0))
		image.SetLogger(log.New(a.stderr, "image: ", 0))
	}
}

func (a *app) options() []card.Option {
	var opts []card.Option
	if a.clock != nil {
		opts = append(opts, card.WithClock(a.clock))
	}
	return opts
}

func (a *app) open(readOnly bool) (*image.Image, error) {
	if a.cfg.Image == "" {
		return nil, errNoImage
	}
	return image.OpenImage(a.fs, a.cfg.Image, readOnly, a.options()...)
}

// withImage runs fn on the open image and closes it afterwards, saving
// whatever fn changed.
func (a *app) withImage(readOnly bool, fn func(*image.Image) error) (err error) {
	img, err := a.open(readOnly)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, img.Close())
	}()
	return fn(img)
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.stdout, format, args...)
}
