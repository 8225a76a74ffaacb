package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTaskID(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		wantID   string
		wantRule string
	}{
		{
			name:     "nested data.id",
			payload:  map[string]any{"data": map[string]any{"id": "abc"}},
			wantID:   "abc",
			wantRule: "data.id",
		},
		{
			name:     "top level id",
			payload:  map[string]any{"id": "def"},
			wantID:   "def",
			wantRule: "id",
		},
		{
			name:     "page_id",
			payload:  map[string]any{"page_id": "ghi"},
			wantID:   "ghi",
			wantRule: "page_id",
		},
		{
			name: "data.id wins over id",
			payload: map[string]any{
				"data": map[string]any{"id": "nested"},
				"id":   "top",
			},
			wantID:   "nested",
			wantRule: "data.id",
		},
		{
			name:     "empty nested falls through",
			payload:  map[string]any{"data": map[string]any{}, "id": "top"},
			wantID:   "top",
			wantRule: "id",
		},
		{
			name:    "non-string id ignored",
			payload: map[string]any{"id": 42},
		},
		{
			name:    "no id anywhere",
			payload: map[string]any{"event": "updated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, rule := extractTaskID(tt.payload)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}
