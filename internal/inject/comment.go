package inject

import (
	"strings"

	"github.com/chaz8081/gostt-code/internal/lang"
)

// Form is how a transcript is turned into a comment.
type Form int

const (
	FormNone         Form = iota // no comment syntax; text unchanged
	FormBlock                    // one block comment around all lines
	FormLine                     // a line comment on every line
	FormBlockPerLine             // a block comment around every line
)

func (f Form) String() string {
	switch f {
	case FormBlock:
		return "block"
	case FormLine:
		return "line"
	case FormBlockPerLine:
		return "block-per-line"
	}
	return "none"
}

// Decide picks the comment form. Multi-line text uses a block comment when
// the language has one and the text cannot close it early; everything else
// gets per-line line comments.
func Decide(text string, d lang.Descriptor) Form {
	multiLine := strings.Contains(normalizeNewlines(text), "\n")
	closesBlock := d.HasBlock() && strings.Contains(text, d.BlockEnd)
	switch {
	case multiLine && d.HasBlock() && !(closesBlock && d.HasLine()):
		return FormBlock
	case d.HasLine():
		return FormLine
	case d.HasBlock():
		return FormBlockPerLine
	}
	return FormNone
}

// FormatComment renders text as a comment in the language described by d.
func FormatComment(text string, d lang.Descriptor) string {
	text = strings.TrimRight(normalizeNewlines(text), "\n")
	lines := strings.Split(text, "\n")

	switch Decide(text, d) {
	case FormBlock:
		return d.BlockStart + "\n" + text + "\n" + d.BlockEnd
	case FormLine:
		for i, l := range lines {
			if strings.TrimSpace(l) == "" {
				lines[i] = d.Line
				continue
			}
			lines[i] = d.Line + " " + l
		}
		return strings.Join(lines, "\n")
	case FormBlockPerLine:
		for i, l := range lines {
			lines[i] = d.BlockStart + " " + l + " " + d.BlockEnd
		}
		return strings.Join(lines, "\n")
	}
	return text
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
