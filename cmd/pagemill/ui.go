package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	greenText  = color.New(color.FgGreen)
	yellowText = color.New(color.FgYellow)
	redText    = color.New(color.FgRed)
)

func success(format string, args ...interface{}) {
	greenText.Fprintf(os.Stdout, "✓ %s\n", fmt.Sprintf(format, args...))
}

func warning(format string, args ...interface{}) {
	yellowText.Fprintf(os.Stdout, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func failure(format string, args ...interface{}) {
	redText.Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
}
