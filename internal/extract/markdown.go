package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/cortexa-labs/ragserve/internal/model"
)

// markdownPages strips markdown syntax down to plain text while keeping
// heading and paragraph boundaries, which the splitter later prefers as
// chunk boundaries.
func markdownPages(data []byte) ([]model.Page, error) {
	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, data)
			if heading != "" {
				blocks = append(blocks, strings.Repeat("#", n.Level)+" "+heading)
			}
		case *ast.FencedCodeBlock:
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(data))
			}
			if trimmed := strings.TrimSpace(code.String()); trimmed != "" {
				blocks = append(blocks, trimmed)
			}
		default:
			if txt := nodeText(node, data); txt != "" {
				blocks = append(blocks, txt)
			}
		}
	}
	content := strings.Join(blocks, "\n\n")
	if content == "" {
		return nil, nil
	}
	return []model.Page{{Content: content, Page: 1}}, nil
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
