// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const columnGap = 2

var (
	// Status colors follow the ANSI palette so they read on light and
	// dark terminals alike.
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Table is a plain column table. Cells may carry styling; widths are
// measured on visible characters.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table to w. Headers are bold when w is a color
// terminal.
func (t *Table) Render(w io.Writer) error {
	headerStyle := lipgloss.NewRenderer(w).NewStyle().Bold(true)

	widths := make([]int, len(t.Headers))
	for index, header := range t.Headers {
		widths[index] = lipgloss.Width(header)
	}
	for _, row := range t.Rows {
		for index, cell := range row {
			if index < len(widths) {
				widths[index] = max(widths[index], lipgloss.Width(cell))
			}
		}
	}

	var builder strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for index, width := range widths {
			cell := ""
			if index < len(cells) {
				cell = cells[index]
			}
			if style != nil {
				cell = style.Render(cell)
			}
			if index == len(widths)-1 {
				builder.WriteString(cell)
				break
			}
			builder.WriteString(cell)
			builder.WriteString(strings.Repeat(" ", width-lipgloss.Width(cell)+columnGap))
		}
		builder.WriteString("\n")
	}

	writeRow(t.Headers, &headerStyle)
	for _, row := range t.Rows {
		writeRow(row, nil)
	}
	_, err := fmt.Fprint(w, builder.String())
	return err
}

// StyleGood, StyleWarning, StyleBad and StyleFaint color a table cell.
func StyleGood(text string) string    { return goodStyle.Render(text) }
func StyleWarning(text string) string { return warningStyle.Render(text) }
func StyleBad(text string) string     { return badStyle.Render(text) }
func StyleFaint(text string) string   { return faintStyle.Render(text) }
