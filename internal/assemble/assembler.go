// Package assemble builds the bounded context bundle handed to the
// generation provider.
package assemble

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/refs"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// TruncationMarker is appended whenever the bundle is cut to budget.
// Truncation is a hard tail cut and never silent.
const TruncationMarker = "\n\n[Content truncated due to length...]"

// DefaultCharBudget bounds the serialized bundle size (~120k tokens).
const DefaultCharBudget = 480000

// DefaultMaxReferences caps the reference fan-out.
const DefaultMaxReferences = 5

// Fetcher retrieves one document per call. workspace.Client satisfies it.
type Fetcher interface {
	FetchDocument(ctx context.Context, pageID string) (*workspace.Document, error)
}

// Options parameterizes one assembly run.
type Options struct {
	// MaxReferences caps how many references are fetched, in extraction order.
	MaxReferences int
	// CharBudget bounds the serialized bundle; applied after concatenation.
	CharBudget int
	// FirstRefIsPrimary promotes the first resolved reference to the primary
	// instruction source, demoting the task's own text to a preamble.
	FirstRefIsPrimary bool
}

func (o Options) withDefaults() Options {
	if o.MaxReferences <= 0 {
		o.MaxReferences = DefaultMaxReferences
	}
	if o.CharBudget <= 0 {
		o.CharBudget = DefaultCharBudget
	}
	return o
}

// Bundle is the assembled, size-bounded context.
type Bundle struct {
	// Text is the serialized bundle, truncated to budget.
	Text string
	// Primary is the title of the primary entry ("" when the instruction
	// text itself is primary).
	Primary string
	// Resolved counts references that fetched successfully.
	Resolved int
	// Requested counts references attempted (after the cap).
	Requested int
	// Truncated reports whether the budget cut applied.
	Truncated bool
}

// Assembler resolves references and concatenates the context bundle.
type Assembler struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// New creates an assembler.
func New(fetcher Fetcher, logger *zap.Logger) *Assembler {
	return &Assembler{fetcher: fetcher, logger: logger}
}

// Build fetches up to MaxReferences referenced documents sequentially and
// assembles instruction + primary + supporting sections. A failed reference
// fetch is logged and dropped; it never aborts the whole assembly.
func (a *Assembler) Build(ctx context.Context, instruction string, references []refs.DocumentReference, opts Options) (*Bundle, error) {
	opts = opts.withDefaults()

	if len(references) > opts.MaxReferences {
		references = references[:opts.MaxReferences]
	}

	var docs []*workspace.Document
	for _, ref := range references {
		doc, err := a.fetcher.FetchDocument(ctx, ref.ID)
		if err != nil {
			metrics.ReferenceFetchFailures.Inc()
			a.logger.Warn("Failed to fetch referenced document, dropping it",
				zap.String("page_id", ref.ID),
				zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	metrics.ReferencesResolved.Observe(float64(len(docs)))

	bundle := &Bundle{
		Resolved:  len(docs),
		Requested: len(references),
	}

	var b strings.Builder
	supporting := docs
	if opts.FirstRefIsPrimary && len(docs) > 0 {
		primary := docs[0]
		supporting = docs[1:]
		bundle.Primary = primary.Title
		b.WriteString("# " + primary.Title + "\n\n" + primary.Content)
		if instruction != "" {
			b.WriteString("\n\n---\n\n" + instruction)
		}
	} else {
		b.WriteString(instruction)
	}

	if len(supporting) > 0 {
		b.WriteString("\n\n---\n\n## Supporting Context\n\n")
		for _, doc := range supporting {
			b.WriteString("### " + doc.Title + "\n\n" + doc.Content + "\n\n")
		}
	}

	bundle.Text = Truncate(b.String(), opts.CharBudget)
	bundle.Truncated = len(bundle.Text) != len(b.String())
	if bundle.Truncated {
		metrics.ContextTruncations.Inc()
		a.logger.Info("Context bundle truncated to budget",
			zap.Int("budget", opts.CharBudget),
			zap.Int("original_len", b.Len()))
	}
	return bundle, nil
}

// Truncate hard-cuts content so the result, marker included, never exceeds
// maxChars. Content under budget is returned unmodified.
func Truncate(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}
	cut := maxChars - len(TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	return content[:cut] + TruncationMarker
}
