// Package main is the entry point for the quizstore CLI.
package main

import (
	"os"

	"github.com/leeovery/quizstore/internal/cli"
)

func main() {
	app := &cli.App{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Dir:    ".",
	}

	if wd, err := os.Getwd(); err == nil {
		app.Dir = wd
	}

	os.Exit(app.Run(os.Args))
}
