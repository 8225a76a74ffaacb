package workspace

// Types in this package model the narrow slice of the document-workspace API
// the pipeline reads and writes: page property values, rich text runs, and
// content blocks. The workspace owns the records; nothing here is persisted
// locally.

// Document is a page reduced to its renderable form.
type Document struct {
	ID      string
	Title   string
	Content string
}

// Page is a workspace record with its structured fields.
type Page struct {
	ID         string              `json:"id"`
	URL        string              `json:"url,omitempty"`
	Properties map[string]Property `json:"properties"`
}

// Property is a loosely-typed page field. Exactly one of the value fields is
// set, discriminated by Type.
type Property struct {
	Type     string      `json:"type,omitempty"`
	Title    []RichText  `json:"title,omitempty"`
	RichText []RichText  `json:"rich_text,omitempty"`
	Status   *SelectName `json:"status,omitempty"`
	Select   *SelectName `json:"select,omitempty"`
	Checkbox *bool       `json:"checkbox,omitempty"`
	URL      *string     `json:"url,omitempty"`
	Relation []Relation  `json:"relation,omitempty"`
	Date     *DateValue  `json:"date,omitempty"`
}

// SelectName names a status or select option.
type SelectName struct {
	Name string `json:"name"`
}

// Relation points at another page.
type Relation struct {
	ID string `json:"id"`
}

// DateValue carries a datestamp property value.
type DateValue struct {
	Start string `json:"start"`
}

// RichText is one run of a rich-text field. Mention runs carry a structured
// page reference; plain runs carry text that may embed workspace URLs.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	Mention   *Mention     `json:"mention,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
	Href      string       `json:"href,omitempty"`
}

// TextContent is the editable payload of a text run.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link is an inline hyperlink on a text run.
type Link struct {
	URL string `json:"url"`
}

// Mention is a structured inline reference.
type Mention struct {
	Type string       `json:"type"`
	Page *PageMention `json:"page,omitempty"`
}

// PageMention identifies the mentioned page.
type PageMention struct {
	ID string `json:"id"`
}

// Block is one unit of page content. The pipeline only ever constructs the
// subset of block types it writes (paragraph, heading, list item, quote,
// code, divider, callout, image) and renders whatever it reads.
type Block struct {
	Type             string      `json:"type"`
	Paragraph        *BlockText  `json:"paragraph,omitempty"`
	Heading1         *BlockText  `json:"heading_1,omitempty"`
	Heading2         *BlockText  `json:"heading_2,omitempty"`
	Heading3         *BlockText  `json:"heading_3,omitempty"`
	BulletedListItem *BlockText  `json:"bulleted_list_item,omitempty"`
	NumberedListItem *BlockText  `json:"numbered_list_item,omitempty"`
	Quote            *BlockText  `json:"quote,omitempty"`
	Code             *CodeBlock  `json:"code,omitempty"`
	Divider          *struct{}   `json:"divider,omitempty"`
	Callout          *Callout    `json:"callout,omitempty"`
	Image            *ImageBlock `json:"image,omitempty"`
}

// BlockText is the rich-text payload shared by most block types.
type BlockText struct {
	RichText []RichText `json:"rich_text"`
}

// CodeBlock is a fenced code block.
type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language,omitempty"`
}

// Callout is a visually distinct block used as the provenance marker.
type Callout struct {
	Icon     *Icon      `json:"icon,omitempty"`
	Color    string     `json:"color,omitempty"`
	RichText []RichText `json:"rich_text"`
}

// Icon is an emoji icon on a callout.
type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// ImageBlock embeds an externally hosted image.
type ImageBlock struct {
	Type     string       `json:"type"`
	External *ExternalRef `json:"external,omitempty"`
}

// ExternalRef is an external URL payload.
type ExternalRef struct {
	URL string `json:"url"`
}

// Text builds a single-run rich-text slice from plain text.
func Text(s string) []RichText {
	return []RichText{{Type: "text", Text: &TextContent{Content: s}}}
}

// PlainText concatenates the plain-text content of a rich-text field.
func PlainText(runs []RichText) string {
	var out string
	for _, r := range runs {
		if r.PlainText != "" {
			out += r.PlainText
		} else if r.Text != nil {
			out += r.Text.Content
		}
	}
	return out
}

// Paragraph builds a paragraph block from plain text.
func Paragraph(s string) Block {
	return Block{Type: "paragraph", Paragraph: &BlockText{RichText: Text(s)}}
}
