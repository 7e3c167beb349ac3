package output

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// ProgressBar renders a fixed-width bar for a percentage in [0, 100].
func ProgressBar(percent float64, width int) string {
	if width <= 0 {
		width = 30
	}
	percent = max(0, min(percent, 100))
	filled := max(0, min(int(percent/100*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%%", bar, percent)
}

func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func terminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24
	}
	return height
}

func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// WrapText splits text into lines that fit the terminal after indent columns.
func WrapText(text string, indent int) []string {
	return wrapAt(text, TerminalWidth()-indent-2)
}

func wrapAt(text string, maxWidth int) []string {
	if maxWidth <= 10 {
		maxWidth = 80
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if utf8.RuneCountInString(paragraph) <= maxWidth {
			lines = append(lines, paragraph)
			continue
		}
		current := ""
		width := 0
		for _, word := range strings.Fields(paragraph) {
			wlen := utf8.RuneCountInString(word)
			if width > 0 && width+1+wlen > maxWidth {
				lines = append(lines, current)
				current, width = "", 0
			}
			for wlen > maxWidth {
				runes := []rune(word)
				lines = append(lines, string(runes[:maxWidth]))
				word = string(runes[maxWidth:])
				wlen = utf8.RuneCountInString(word)
			}
			if width > 0 {
				current += " "
				width++
			}
			current += word
			width += wlen
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}
