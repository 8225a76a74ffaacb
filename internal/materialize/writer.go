package materialize

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// DefaultBatchCeiling matches the workspace API's append limit.
const DefaultBatchCeiling = workspace.AppendBatchCeiling

// Provenance describes the marker callout written ahead of generated
// content so readers can tell machine output from human edits.
type Provenance struct {
	Emoji string
	Color string
	Label string
}

// Block renders the provenance marker as a callout.
func (p Provenance) Block() workspace.Block {
	emoji := p.Emoji
	if emoji == "" {
		emoji = "🤖"
	}
	color := p.Color
	if color == "" {
		color = "purple_background"
	}
	return workspace.Block{
		Type: "callout",
		Callout: &workspace.Callout{
			Icon:     &workspace.Icon{Type: "emoji", Emoji: emoji},
			Color:    color,
			RichText: workspace.Text(p.Label),
		},
	}
}

// Writer appends converted content to workspace pages in ordered batches.
type Writer struct {
	ws             workspace.Client
	batchCeiling   int
	blockCharLimit int
	logger         *zap.Logger
}

// NewWriter creates a writer. Zero limits take the defaults (100 blocks per
// batch, 2000 chars per block).
func NewWriter(ws workspace.Client, batchCeiling, blockCharLimit int, logger *zap.Logger) *Writer {
	if batchCeiling <= 0 {
		batchCeiling = DefaultBatchCeiling
	}
	if blockCharLimit <= 0 {
		blockCharLimit = DefaultBlockCharLimit
	}
	return &Writer{ws: ws, batchCeiling: batchCeiling, blockCharLimit: blockCharLimit, logger: logger}
}

// WriteText converts text to blocks and appends it under a provenance marker.
// Returns the number of content blocks written.
func (w *Writer) WriteText(ctx context.Context, destID, text string, marker Provenance) (int, error) {
	blocks := BlocksFromMarkdown(text, w.blockCharLimit)
	all := append([]workspace.Block{marker.Block()}, blocks...)
	if err := w.AppendBatches(ctx, destID, all); err != nil {
		return 0, err
	}
	return len(blocks), nil
}

// WriteImage appends a provenance callout plus an external image embed.
func (w *Writer) WriteImage(ctx context.Context, destID, imageURL string, marker Provenance) error {
	blocks := []workspace.Block{
		marker.Block(),
		{Type: "image", Image: &workspace.ImageBlock{
			Type:     "external",
			External: &workspace.ExternalRef{URL: imageURL},
		}},
	}
	return w.AppendBatches(ctx, destID, blocks)
}

// AppendBatches splits blocks into batches of at most the ceiling and submits
// them sequentially. Sequential submission preserves block order; the batch
// count is ceil(len/ceiling).
func (w *Writer) AppendBatches(ctx context.Context, destID string, blocks []workspace.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	batches := 0
	for start := 0; start < len(blocks); start += w.batchCeiling {
		end := start + w.batchCeiling
		if end > len(blocks) {
			end = len(blocks)
		}
		if err := w.ws.AppendBlocks(ctx, destID, blocks[start:end]); err != nil {
			metrics.WritebackFailures.Inc()
			return fmt.Errorf("append batch %d: %w", batches+1, err)
		}
		batches++
	}
	metrics.WritebackBatches.Observe(float64(batches))
	w.logger.Debug("Writeback completed",
		zap.String("dest_id", destID),
		zap.Int("blocks", len(blocks)),
		zap.Int("batches", batches))
	return nil
}
