package utils

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractJSON returns the JSON payload of a model reply. Replies wrapped in a
// fenced code block (```json ... ```) yield the first such block; otherwise
// the text between the first '{' and the last '}' is returned.
func ExtractJSON(input string) string {
	cleaned := strings.TrimSpace(input)
	if strings.HasPrefix(cleaned, "{") || strings.HasPrefix(cleaned, "[") {
		return cleaned
	}

	if block, ok := firstFencedBlock([]byte(cleaned)); ok {
		return strings.TrimSpace(block)
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		return cleaned[start : end+1]
	}
	return cleaned
}

// firstFencedBlock walks the Markdown AST and returns the first fenced block
// whose language is json or empty.
func firstFencedBlock(source []byte) (string, bool) {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var (
		out   bytes.Buffer
		found bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(block.Language(source)))
		if lang != "" && lang != "json" {
			return ast.WalkSkipChildren, nil
		}
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			out.Write(seg.Value(source))
		}
		found = true
		return ast.WalkStop, nil
	})
	return out.String(), found
}
