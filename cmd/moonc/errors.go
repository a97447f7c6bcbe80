package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"moonc/internal/analysis"
)

func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	label := "error"
	if errors.Is(err, analysis.ErrInternal) {
		label = "internal compiler error"
	}
	fmt.Fprintf(w, "%s: %v\n", red.Sprint(label), err)
}
