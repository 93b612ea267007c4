// Package hexdump renders module bytes around a signature match.
package hexdump

import (
	"fmt"
	"io"
	"strings"

	"btndump/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

const DefaultBytesPerLine = 16

// Options controls the rendering
type Options struct {
	BytesPerLine int

	// HighlightStart and HighlightEnd bound the bytes to highlight, relative to data
	HighlightStart int
	HighlightEnd   int

	Color bool
}

func DefaultOptions() Options {
	return Options{BytesPerLine: DefaultBytesPerLine, Color: true}
}

func (o Options) highlighted(i int) bool {
	return o.Color && i >= o.HighlightStart && i < o.HighlightEnd
}

// Dump writes data as lines of `address  hex | hex  |ascii|`, where address starts at base
func Dump(w io.Writer, data []byte, base process.ProcessMemoryAddress, opts Options) {
	if opts.BytesPerLine <= 0 {
		opts.BytesPerLine = DefaultBytesPerLine
	}

	for line := 0; line < len(data); line += opts.BytesPerLine {
		end := line + opts.BytesPerLine
		if end > len(data) {
			end = len(data)
		}
		formatLine(w, data, line, end, base, opts)
	}
}

func formatLine(w io.Writer, data []byte, start, end int, base process.ProcessMemoryAddress, opts Options) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%016x  ", uint64(base)+uint64(start))

	half := opts.BytesPerLine / 2
	for i := 0; i < opts.BytesPerLine; i++ {
		if i > 0 {
			if i == half && opts.BytesPerLine >= 8 {
				sb.WriteString(" | ")
			} else {
				sb.WriteByte(' ')
			}
		}

		pos := start + i
		if pos >= end {
			sb.WriteString("  ")
			continue
		}

		hex := fmt.Sprintf("%02x", data[pos])
		if opts.highlighted(pos) {
			hex = coloransi.Color(coloransi.Red, coloransi.ColorOrange, hex)
		}
		sb.WriteString(hex)
	}

	sb.WriteString("  |")
	for pos := start; pos < end; pos++ {
		c := "."
		if b := data[pos]; b >= 0x20 && b < 0x7f {
			c = string(rune(b))
		}
		if opts.highlighted(pos) {
			c = coloransi.Color(coloransi.Red, coloransi.ColorOrange, c)
		}
		sb.WriteString(c)
	}
	sb.WriteString("|\n")

	io.WriteString(w, sb.String())
}

// Around dumps the bytes of snapshot surrounding [offset, offset+length), widened by
// context bytes on each side and aligned to whole lines, highlighting the range itself.
func Around(w io.Writer, snapshot []byte, base process.ProcessMemoryAddress, offset, length, context int, opts Options) {
	if opts.BytesPerLine <= 0 {
		opts.BytesPerLine = DefaultBytesPerLine
	}

	start := offset - context
	if start < 0 {
		start = 0
	}
	start -= start % opts.BytesPerLine

	end := offset + length + context
	if end > len(snapshot) {
		end = len(snapshot)
	}
	if start >= end {
		return
	}

	opts.HighlightStart = offset - start
	opts.HighlightEnd = offset + length - start

	Dump(w, snapshot[start:end], base.Add(process.ProcessMemorySize(start)), opts)
}
