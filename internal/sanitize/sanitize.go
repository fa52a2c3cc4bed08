// Package sanitize bounds and cleans free-text input before it reaches
// the prompt composer, the database, or the file system.
package sanitize

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Text strips control characters (keeping newlines and tabs), trims
// surrounding whitespace, and caps the result at max runes. A max of
// zero or less means no length cap.
func Text(input string, max int) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if max > 0 {
		runes := []rune(out)
		if len(runes) > max {
			out = string(runes[:max])
		}
	}
	return out
}

// unsafe for a file system or markup context
var fileNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "&", "_",
)

// FileName reduces a caller-supplied name to a single safe path element:
// traversal sequences removed, separators and markup characters replaced.
func FileName(name string) string {
	name = Text(name, 255)
	name = filepath.Base(name)
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", "")
	}
	name = fileNameReplacer.Replace(name)
	name = strings.Trim(name, ". ")
	if name == "" {
		return "file"
	}
	return name
}

// Description cleans a free-text description that may be rendered in a
// markup context alongside file listings.
func Description(input string, max int) string {
	out := Text(input, max)
	out = strings.ReplaceAll(out, "<", "")
	out = strings.ReplaceAll(out, ">", "")
	return out
}
