package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// palette formats inspector output, coloring it when enabled
type palette struct {
	Key   func(string, ...interface{}) string
	Value func(string, ...interface{}) string
	Meta  func(string, ...interface{}) string
	Err   func(string, ...interface{}) string
}

var plainPalette = newPalette(false)

func newPalette(enabled bool) *palette {
	if !enabled {
		return &palette{Key: fmt.Sprintf, Value: fmt.Sprintf, Meta: fmt.Sprintf, Err: fmt.Sprintf}
	}
	return &palette{
		Key:   colorFunc(color.FgCyan, color.Bold),
		Value: colorFunc(color.FgGreen),
		Meta:  colorFunc(color.FgYellow),
		Err:   colorFunc(color.FgRed),
	}
}

// colorFunc forces color on; the caller decides whether output is a terminal
func colorFunc(attrs ...color.Attribute) func(string, ...interface{}) string {
	c := color.New(attrs...)
	c.EnableColor()
	return c.SprintfFunc()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
