// Package task models task-descriptor records and resolves them from the
// document workspace.
package task

import (
	"strings"

	"github.com/pagerelay/pagerelay/internal/refs"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// Status is the task lifecycle state as stored on the record.
type Status string

const (
	StatusQueued  Status = "Queued"
	StatusWorking Status = "Working"
	StatusDone    Status = "Done"
	StatusError   Status = "Error"
)

// Destination selects where generated content is written back.
type Destination string

const (
	// DestinationTask appends the result to the task record itself.
	DestinationTask Destination = "Task"
	// DestinationSource appends the result to the first referenced record.
	DestinationSource Destination = "Source"
	// DestinationBoth writes to both locations.
	DestinationBoth Destination = "Both"
)

// Well-known property names on task records. The workspace schema is owned
// externally; the trailing-space variant of Description exists in the wild.
const (
	PropDescription     = "Description"
	PropDescriptionAlt  = "Description "
	PropContext         = "Context"
	PropLinks           = "Links"
	PropAgent           = "Agent"
	PropStatus          = "Status"
	PropResponse        = "Response"
	PropTrigger         = "Checkbox"
	PropStartedAt       = "Started At"
	PropCompletedAt     = "Completed At"
	PropErrorLog        = "Error Log"
	PropParentTask      = "Parent Task"
	PropSupervisorFlag  = "Supervisor Trigger"
	PropDestination     = "Output Destination"
	PropImagePrompt     = "Image Prompt"
	PropImageInputs     = "Image Input URLs"
	PropImageAspect     = "Image Aspect Ratio"
	PropImageResolution = "Image Resolution"
	PropImageResultURL  = "Image Result URL"
	PropDecisionsMade   = "Decisions Made"
)

// Record is a resolved task descriptor. It is a read-side projection of the
// workspace page; writes go back through the status propagator and
// materializer.
type Record struct {
	ID          string
	Title       string
	Instruction string
	Links       []workspace.RichText
	References  []refs.DocumentReference
	ParentID    string
	Agent       string
	Destination Destination
	Status      Status

	Image ImageParams
}

// ImageParams carries the image-generation fields of a task record.
type ImageParams struct {
	Prompt      string
	InputURLs   []string
	AspectRatio string
	Resolution  string
}

// FromPage projects a workspace page into a task record.
func FromPage(page *workspace.Page) *Record {
	rec := &Record{
		ID:          page.ID,
		Title:       titleOf(page),
		Instruction: firstText(page, PropDescription, PropDescriptionAlt, PropContext),
		Destination: DestinationTask,
	}

	if prop, ok := page.Properties[PropLinks]; ok {
		rec.Links = prop.RichText
		rec.References = refs.Extract(prop.RichText)
	}
	if prop, ok := page.Properties[PropParentTask]; ok && len(prop.Relation) > 0 {
		rec.ParentID = prop.Relation[0].ID
	}
	if prop, ok := page.Properties[PropAgent]; ok && prop.Select != nil {
		rec.Agent = prop.Select.Name
	}
	if prop, ok := page.Properties[PropStatus]; ok && prop.Status != nil {
		rec.Status = Status(prop.Status.Name)
	}
	if prop, ok := page.Properties[PropDestination]; ok && prop.Select != nil {
		switch strings.ToLower(prop.Select.Name) {
		case "source":
			rec.Destination = DestinationSource
		case "both":
			rec.Destination = DestinationBoth
		}
	}

	rec.Image = ImageParams{
		Prompt:      richText(page, PropImagePrompt),
		AspectRatio: selectName(page, PropImageAspect, "1:1"),
		Resolution:  selectName(page, PropImageResolution, "1K"),
	}
	if raw := richText(page, PropImageInputs); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if url := strings.TrimSpace(part); url != "" {
				rec.Image.InputURLs = append(rec.Image.InputURLs, url)
			}
		}
	}
	// Image tasks without an explicit prompt fall back to the instruction.
	if rec.Image.Prompt == "" {
		rec.Image.Prompt = rec.Instruction
	}

	return rec
}

func titleOf(page *workspace.Page) string {
	for _, prop := range page.Properties {
		if len(prop.Title) > 0 {
			return workspace.PlainText(prop.Title)
		}
	}
	return "Untitled"
}

func firstText(page *workspace.Page, names ...string) string {
	for _, name := range names {
		if s := richText(page, name); s != "" {
			return s
		}
	}
	return ""
}

func richText(page *workspace.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	return workspace.PlainText(prop.RichText)
}

func selectName(page *workspace.Page, name, fallback string) string {
	if prop, ok := page.Properties[name]; ok && prop.Select != nil && prop.Select.Name != "" {
		return prop.Select.Name
	}
	return fallback
}
