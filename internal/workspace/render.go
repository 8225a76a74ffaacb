package workspace

import (
	"strconv"
	"strings"
)

// renderBlocks flattens fetched blocks into markdown-shaped text. This is the
// read half of format conversion: good enough for prompt context, not a
// round-trippable exporter.
func renderBlocks(blocks []blockChild) string {
	var b strings.Builder
	num := 0
	for _, blk := range blocks {
		if blk.Type != "numbered_list_item" {
			num = 0
		}
		switch blk.Type {
		case "paragraph":
			writeLine(&b, PlainText(textOf(blk.Paragraph)))
		case "heading_1":
			writeLine(&b, "# "+PlainText(textOf(blk.Heading1)))
		case "heading_2":
			writeLine(&b, "## "+PlainText(textOf(blk.Heading2)))
		case "heading_3":
			writeLine(&b, "### "+PlainText(textOf(blk.Heading3)))
		case "bulleted_list_item":
			b.WriteString("- " + PlainText(textOf(blk.BulletedListItem)) + "\n")
		case "numbered_list_item":
			num++
			b.WriteString(strconv.Itoa(num) + ". " + PlainText(textOf(blk.NumberedListItem)) + "\n")
		case "quote":
			writeLine(&b, "> "+PlainText(textOf(blk.Quote)))
		case "code":
			if blk.Code != nil {
				b.WriteString("```" + blk.Code.Language + "\n" + PlainText(blk.Code.RichText) + "\n```\n\n")
			}
		case "divider":
			writeLine(&b, "---")
		case "callout":
			if blk.Callout != nil {
				writeLine(&b, "> "+PlainText(blk.Callout.RichText))
			}
		case "image":
			if blk.Image != nil && blk.Image.External != nil {
				writeLine(&b, "!["+blk.Image.External.URL+"]("+blk.Image.External.URL+")")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func textOf(t *BlockText) []RichText {
	if t == nil {
		return nil
	}
	return t.RichText
}

func writeLine(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteString("\n\n")
}
