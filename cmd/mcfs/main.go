package main

import (
	"os"

	"github.com/spf13/afero"
)

func main() {
	home, _ := os.UserHomeDir()
	a := newApp(afero.NewOsFs(), home, os.Stdout, os.Stderr)
	os.Exit(a.run(os.Args[1:]))
}
