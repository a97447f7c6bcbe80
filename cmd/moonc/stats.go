package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"moonc/internal/driver"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <chunk.mpk>",
	Short: "Summarize optimization and frame sizes per function",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) (err error) {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer func() { cleanup(err != nil) }()

	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	chunk, err := driver.LoadChunk(args[0])
	if err != nil {
		return err
	}
	res, err := driver.Compile(cmd.Context(), chunk, driver.Options{Config: opts})
	if err != nil {
		return err
	}

	header := []string{"function", "name", "blocks", "instrs", "rounds", "frame", "deps"}
	var rows [][]string
	for _, id := range res.Order {
		fr := res.Funcs[id]
		rounds := strconv.Itoa(fr.Stats.Rounds)
		if fr.Stats.Capped {
			rounds += "!"
		}
		deps := make([]string, len(fr.Deps))
		for i, d := range fr.Deps {
			deps[i] = d.String()
		}
		rows = append(rows, []string{
			id.String(),
			fr.Func.Name,
			strconv.Itoa(len(fr.Func.Blocks)),
			fmt.Sprintf("%d -> %d", fr.Stats.Before, fr.Stats.After),
			rounds,
			strconv.Itoa(fr.Slots.Size),
			strings.Join(deps, ","),
		})
	}
	for _, id := range res.Dropped {
		rows = append(rows, []string{id.String(), "(unreachable)", "", "", "", "", ""})
	}
	renderTable(cmd.OutOrStdout(), res.Name, header, rows, colored)
	return nil
}

// renderTable prints rows in left-aligned columns. Widths are measured in
// terminal cells so non-ASCII function names line up.
func renderTable(w io.Writer, title string, header []string, rows [][]string, colored bool) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	headStyle := lipgloss.NewStyle().Bold(true)
	if !colored {
		titleStyle = lipgloss.NewStyle()
		headStyle = lipgloss.NewStyle()
	}

	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, headStyle.Render(joinCells(header, widths)))
	for _, row := range rows {
		fmt.Fprintln(w, joinCells(row, widths))
	}
}

func joinCells(cells []string, widths []int) string {
	var sb strings.Builder
	for i, cell := range cells {
		if i > 0 {
			sb.WriteString("  ")
		}
		if i == len(cells)-1 {
			sb.WriteString(cell)
			break
		}
		sb.WriteString(runewidth.FillRight(cell, widths[i]))
	}
	return strings.TrimRight(sb.String(), " ")
}
