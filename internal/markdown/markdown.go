// Package markdown turns markdown bodies into the plain previews shown on a
// notification banner.
package markdown

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const ellipsis = "…"

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// PlainText strips markdown syntax and returns one line per block.
func PlainText(src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var lines []string
	var cur bytes.Buffer
	flush := func() {
		if line := strings.TrimSpace(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				cur.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					flush()
				}
			}
		case *ast.String:
			if entering {
				cur.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				l := n.Lines()
				for i := 0; i < l.Len(); i++ {
					seg := l.At(i)
					cur.Write(seg.Value(source))
					flush()
				}
				return ast.WalkSkipChildren, nil
			}
		case *ast.AutoLink:
			if entering {
				cur.Write(node.Label(source))
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	flush()

	return strings.Join(lines, "\n")
}

// Preview collapses PlainText into a single comma-joined line of at most
// maxRunes runes, with an ellipsis when truncated.
func Preview(src string, maxRunes int) string {
	var parts []string
	for _, line := range strings.Split(PlainText(src), "\n") {
		if line != "" {
			parts = append(parts, line)
		}
	}
	return Truncate(strings.Join(parts, ","), maxRunes)
}

func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes]) + ellipsis
}

// EnsureLineBreaks appends two trailing spaces to every non-empty line so that
// single newlines render as hard breaks.
func EnsureLineBreaks(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if line != "" && !strings.HasSuffix(line, "  ") {
			lines[i] = line + "  "
		}
	}
	return strings.Join(lines, "\n")
}
