// Package tables renders small key/value tables for terminal output.
package tables

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"
)

// Render produces an ASCII table for data, keys sorted:
//
//	Key  Value
//	===  =====
//	bar  2
//	foo  1
//
// Values are printed in full, never wrapped or truncated, so they stay
// copyable from the terminal; termWidth only clamps the length of the
// underline beneath the Value heading.  termWidth <= 0 means use the
// terminal's width (80 if that cannot be determined).  The result has no
// trailing newline.
func Render(data map[string]string, termWidth int) string {
	if termWidth <= 0 {
		termWidth = terminalWidth()
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyWidth := len("Key")
	valueWidth := len("Value")
	for _, k := range keys {
		keyWidth = max(keyWidth, len(k))
		valueWidth = max(valueWidth, len(data[k]))
	}
	valueWidth = max(0, min(termWidth-keyWidth-2, valueWidth))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s  Value\n", keyWidth, "Key")
	sb.WriteString(strings.Repeat("=", keyWidth))
	sb.WriteString("  ")
	sb.WriteString(strings.Repeat("=", valueWidth))
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%-*s  %s", keyWidth, k, data[k])
	}
	return sb.String()
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
