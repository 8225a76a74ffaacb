package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagerelay/pagerelay/internal/workspace"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "raw hex",
			input: "1f2a3b4c5d6e7f801234567890abcdef",
			want:  "1f2a3b4c-5d6e-7f80-1234-567890abcdef",
			ok:    true,
		},
		{
			name:  "already hyphenated",
			input: "1f2a3b4c-5d6e-7f80-1234-567890abcdef",
			want:  "1f2a3b4c-5d6e-7f80-1234-567890abcdef",
			ok:    true,
		},
		{
			name:  "upper case",
			input: "1F2A3B4C5D6E7F801234567890ABCDEF",
			want:  "1f2a3b4c-5d6e-7f80-1234-567890abcdef",
			ok:    true,
		},
		{
			name:  "too short",
			input: "1f2a3b4c",
			ok:    false,
		},
		{
			name:  "not hex",
			input: "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Canonicalize(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)

				// Canonical output must map to itself.
				again, ok := Canonicalize(got)
				require.True(t, ok)
				assert.Equal(t, got, again)
			}
		})
	}
}

func TestFromURL(t *testing.T) {
	id, ok := FromURL("https://www.notion.so/workspace/My-Page-1f2a3b4c5d6e7f801234567890abcdef")
	require.True(t, ok)
	assert.Equal(t, "1f2a3b4c-5d6e-7f80-1234-567890abcdef", id)

	_, ok = FromURL("https://www.notion.so/workspace/no-id-here")
	assert.False(t, ok)
}

func TestExtractOrderAndDedupe(t *testing.T) {
	const (
		first  = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
		second = "11111111-2222-3333-4444-555555555555"
	)

	runs := []workspace.RichText{
		// Structured mention wins without URL parsing.
		{Type: "mention", Mention: &workspace.Mention{Type: "page", Page: &workspace.PageMention{ID: first}}},
		// Plain text with an embedded share URL for a second page.
		{Type: "text", Text: &workspace.TextContent{
			Content: "see https://notion.so/Notes-11111111222233334444555555555555",
		}},
		// Duplicate of the first page as an inline link.
		{Type: "text", Text: &workspace.TextContent{
			Content: "first again",
			Link:    &workspace.Link{URL: "https://www.notion.so/First-aaaaaaaabbbbccccddddeeeeeeeeeeee"},
		}},
	}

	got := Extract(runs)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].ID)
	assert.Equal(t, second, got[1].ID)
}

func TestExtractHref(t *testing.T) {
	runs := []workspace.RichText{
		{Type: "text", Href: "https://www.notion.so/Doc-aaaaaaaabbbbccccddddeeeeeeeeeeee"},
	}
	got := Extract(runs)
	require.Len(t, got, 1)
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", got[0].ID)
}

func TestExtractFromText(t *testing.T) {
	text := "intro https://notion.so/A-aaaaaaaabbbbccccddddeeeeeeeeeeee and " +
		"https://notion.so/A-aaaaaaaabbbbccccddddeeeeeeeeeeee again"
	got := ExtractFromText(text)
	require.Len(t, got, 1)
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", got[0].ID)
}
