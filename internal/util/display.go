package util

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatSize renders a byte count with at most two decimals, e.g. "1.5 KB".
func FormatSize(size int64) string {
	if size < 1024 {
		return strconv.FormatInt(max(size, 0), 10) + " B"
	}
	v := float64(size)
	exp := 0
	for v >= 1024 && exp < len(sizeUnits)-1 {
		v /= 1024
		exp++
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s + " " + sizeUnits[exp]
}

// PadRight fits str into exactly width terminal cells, cutting long names
// with an ellipsis.
func PadRight(str string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(str) > width {
		str = runewidth.Truncate(str, width, "…")
	}
	return str + strings.Repeat(" ", width-runewidth.StringWidth(str))
}
