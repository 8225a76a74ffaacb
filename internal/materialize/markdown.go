// Package materialize converts generated text into workspace blocks and
// writes it back in order-preserving batches.
package materialize

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pagerelay/pagerelay/internal/workspace"
)

// DefaultBlockCharLimit is the destination's per-block character ceiling.
const DefaultBlockCharLimit = 2000

var md = goldmark.New()

// BlocksFromMarkdown converts markdown-shaped text into workspace blocks.
// Conversion failure or empty output falls back to the naive paragraph
// splitter so a successful generation is never dropped on formatting.
func BlocksFromMarkdown(source string, blockCharLimit int) []workspace.Block {
	if blockCharLimit <= 0 {
		blockCharLimit = DefaultBlockCharLimit
	}
	blocks := convert(source, blockCharLimit)
	if len(blocks) == 0 {
		return SplitParagraphs(source, blockCharLimit)
	}
	return blocks
}

func convert(source string, limit int) []workspace.Block {
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []workspace.Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = append(blocks, convertNode(n, src, limit)...)
	}
	return blocks
}

func convertNode(n ast.Node, src []byte, limit int) []workspace.Block {
	switch node := n.(type) {
	case *ast.Heading:
		content := nodeText(node, src)
		return []workspace.Block{heading(node.Level, chunk(content, limit)[0])}
	case *ast.Paragraph:
		return textBlocks("paragraph", nodeText(node, src), limit)
	case *ast.TextBlock:
		return textBlocks("paragraph", nodeText(node, src), limit)
	case *ast.Blockquote:
		return textBlocks("quote", nodeText(node, src), limit)
	case *ast.FencedCodeBlock:
		lang := string(node.Language(src))
		if lang == "" {
			lang = "plain text"
		}
		var blocks []workspace.Block
		for _, part := range chunk(linesText(node, src), limit) {
			blocks = append(blocks, workspace.Block{
				Type: "code",
				Code: &workspace.CodeBlock{RichText: workspace.Text(part), Language: lang},
			})
		}
		return blocks
	case *ast.CodeBlock:
		return textBlocks("paragraph", linesText(node, src), limit)
	case *ast.ThematicBreak:
		return []workspace.Block{{Type: "divider", Divider: &struct{}{}}}
	case *ast.List:
		itemType := "bulleted_list_item"
		if node.IsOrdered() {
			itemType = "numbered_list_item"
		}
		var blocks []workspace.Block
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			blocks = append(blocks, textBlocks(itemType, nodeText(item, src), limit)...)
		}
		return blocks
	default:
		if content := strings.TrimSpace(nodeText(n, src)); content != "" {
			return textBlocks("paragraph", content, limit)
		}
		return nil
	}
}

func heading(level int, content string) workspace.Block {
	bt := &workspace.BlockText{RichText: workspace.Text(content)}
	switch level {
	case 1:
		return workspace.Block{Type: "heading_1", Heading1: bt}
	case 2:
		return workspace.Block{Type: "heading_2", Heading2: bt}
	default:
		return workspace.Block{Type: "heading_3", Heading3: bt}
	}
}

func textBlocks(blockType, content string, limit int) []workspace.Block {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	var blocks []workspace.Block
	for _, part := range chunk(content, limit) {
		bt := &workspace.BlockText{RichText: workspace.Text(part)}
		b := workspace.Block{Type: blockType}
		switch blockType {
		case "quote":
			b.Quote = bt
		case "bulleted_list_item":
			b.BulletedListItem = bt
		case "numbered_list_item":
			b.NumberedListItem = bt
		default:
			b.Paragraph = bt
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// SplitParagraphs is the conversion fallback: blank-line separated chunks,
// each hard-capped at the per-block limit.
func SplitParagraphs(source string, blockCharLimit int) []workspace.Block {
	if blockCharLimit <= 0 {
		blockCharLimit = DefaultBlockCharLimit
	}
	var blocks []workspace.Block
	for _, para := range strings.Split(source, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, part := range chunk(para, blockCharLimit) {
			blocks = append(blocks, workspace.Paragraph(part))
		}
	}
	return blocks
}

// chunk hard-splits s into pieces of at most limit bytes. Always returns at
// least one element.
func chunk(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var parts []string
	for len(s) > limit {
		parts = append(parts, s[:limit])
		s = s[limit:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}

// nodeText collects the plain text of a node's inline content.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// linesText collects raw line content of a literal block node.
func linesText(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}
