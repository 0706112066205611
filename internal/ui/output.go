package ui

import (
	"fmt"
	"strings"
)

// Successf prints a green confirmation line.
func Successf(format string, args ...interface{}) {
	fmt.Println(SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// Errorf prints a red failure line.
func Errorf(format string, args ...interface{}) {
	fmt.Println(ErrorStyle.Render("✗ " + fmt.Sprintf(format, args...)))
}

// Warnf prints an orange warning line.
func Warnf(format string, args ...interface{}) {
	fmt.Println(WarningStyle.Render("! " + fmt.Sprintf(format, args...)))
}

// Header prints a section title.
func Header(title string) {
	fmt.Println(HeaderStyle.Render(title))
}

// Detail prints a muted secondary line.
func Detail(format string, args ...interface{}) {
	fmt.Println(MutedStyle.Render("  " + fmt.Sprintf(format, args...)))
}

// Phasef prints a step-transition line.
func Phasef(format string, args ...interface{}) {
	fmt.Println(PhaseStyle.Render("> " + fmt.Sprintf(format, args...)))
}

// KeyValue prints one aligned field line.
func KeyValue(key, value string) {
	fmt.Println("  " + LabelStyle.Render(key) + value)
}

// Table prints rows under a header with columns sized to their content.
// Columns that are empty in every row are dropped.
func Table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		for _, row := range rows {
			if i < len(row) && len(row[i]) > 0 {
				if len(h) > widths[i] {
					widths[i] = len(h)
				}
				if len(row[i]) > widths[i] {
					widths[i] = len(row[i])
				}
			}
		}
	}

	// Keep rows from wrapping: shrink the widest column until the line
	// fits the terminal, then truncate its cells to match.
	limit := TerminalWidth()
	for lineWidth(widths) > limit {
		widest := 0
		for i, w := range widths {
			if w > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 4 {
			break
		}
		widths[widest]--
	}

	var b strings.Builder
	for i, h := range header {
		if widths[i] > 0 {
			fmt.Fprintf(&b, "%-*s ", widths[i], clip(h, widths[i]))
		}
	}
	fmt.Println(MutedStyle.Render(strings.TrimRight(b.String(), " ")))

	b.Reset()
	for i := range header {
		if widths[i] > 0 {
			b.WriteString(strings.Repeat("-", widths[i]) + " ")
		}
	}
	fmt.Println(MutedStyle.Render(strings.TrimRight(b.String(), " ")))

	for _, row := range rows {
		b.Reset()
		for i := range header {
			if widths[i] == 0 {
				continue
			}
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprintf(&b, "%-*s ", widths[i], clip(cell, widths[i]))
		}
		fmt.Println(strings.TrimRight(b.String(), " "))
	}
}

func lineWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		if w > 0 {
			total += w + 1
		}
	}
	return total
}

func clip(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width]
}
