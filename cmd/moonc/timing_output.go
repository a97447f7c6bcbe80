package main

import (
	"fmt"
	"io"

	"moonc/internal/observ"
)

func printTimings(w io.Writer, path string, rep observ.Report) {
	fmt.Fprintf(w, "%s: %.2f ms\n", path, rep.TotalMS)
	for _, p := range rep.Phases {
		if p.Note != "" {
			fmt.Fprintf(w, "  %-32s %8.2f ms  %s\n", p.Name, p.DurationMS, p.Note)
			continue
		}
		fmt.Fprintf(w, "  %-32s %8.2f ms\n", p.Name, p.DurationMS)
	}
}
