// Package pipeline executes one webhook-triggered task end to end: resolve,
// assemble context, invoke generation, materialize the result, propagate
// status. Behavior differences between entry points are data
// (config.EntryPoint), not code.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/assemble"
	"github.com/pagerelay/pagerelay/internal/config"
	"github.com/pagerelay/pagerelay/internal/imagejob"
	"github.com/pagerelay/pagerelay/internal/llm"
	"github.com/pagerelay/pagerelay/internal/materialize"
	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/personas"
	"github.com/pagerelay/pagerelay/internal/status"
	"github.com/pagerelay/pagerelay/internal/syscontext"
	"github.com/pagerelay/pagerelay/internal/task"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// ErrNoInstruction reports a task with nothing to work from.
var ErrNoInstruction = errors.New("task has no instruction or prompt")

// ErrJobFailed reports a terminal image job failure or poll timeout.
var ErrJobFailed = errors.New("image job failed")

// neutralSystemPrompt avoids persona auto-detection on entry points that do
// not want it.
const neutralSystemPrompt = `You are a helpful assistant.
Do not make assumptions about lacking API access — you have all the context you need in the prompt.
If document content is provided below, use it to answer the question.`

// analystPromptSuffix shapes generated output for workspace materialization.
const analystPromptSuffix = `

You are analyzing workspace documents. Preserve all markdown formatting in your response.
Provide structured, actionable insights. Use headers, bullet points, and tables where appropriate.
Be concise but thorough. Highlight key findings, risks, and recommendations.`

// Result is the observable outcome of one pipeline execution, returned to
// the webhook caller as the response summary.
type Result struct {
	TaskID          string   `json:"task_id"`
	Skipped         bool     `json:"skipped,omitempty"`
	SkipReason      string   `json:"skip_reason,omitempty"`
	ResolvedRefs    int      `json:"resolved_refs"`
	RequestedRefs   int      `json:"requested_refs"`
	Model           string   `json:"model,omitempty"`
	ResponseLen     int      `json:"response_len"`
	Destinations    []string `json:"destinations,omitempty"`
	WritebackFailed bool     `json:"writeback_failed,omitempty"`
	ParentTriggered bool     `json:"parent_triggered,omitempty"`
	JobID           string   `json:"job_id,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
}

// Pipeline wires the stages together. One instance serves all entry points.
type Pipeline struct {
	resolver   *task.Resolver
	assembler  *assemble.Assembler
	invoker    *llm.Invoker
	jobs       imagejob.Client
	poller     *imagejob.Poller
	writer     *materialize.Writer
	propagator *status.Propagator
	sysctx     syscontext.Source
	ws         workspace.Client
	logger     *zap.Logger
}

// Deps collects the pipeline's collaborators.
type Deps struct {
	Workspace  workspace.Client
	Resolver   *task.Resolver
	Assembler  *assemble.Assembler
	Invoker    *llm.Invoker
	Jobs       imagejob.Client
	Poller     *imagejob.Poller
	Writer     *materialize.Writer
	Propagator *status.Propagator
	SysContext syscontext.Source
	Logger     *zap.Logger
}

// New creates a pipeline.
func New(d Deps) *Pipeline {
	sysctx := d.SysContext
	if sysctx == nil {
		sysctx = syscontext.Empty{}
	}
	return &Pipeline{
		resolver:   d.Resolver,
		assembler:  d.Assembler,
		invoker:    d.Invoker,
		jobs:       d.Jobs,
		poller:     d.Poller,
		writer:     d.Writer,
		propagator: d.Propagator,
		sysctx:     sysctx,
		ws:         d.Workspace,
		logger:     d.Logger,
	}
}

// Run executes the entry point's pipeline for one task identifier.
func (p *Pipeline) Run(ctx context.Context, name string, ep config.EntryPoint, taskID string) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx, name, ep, taskID)
	metrics.PipelineDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.Skipped:
		outcome = "skipped"
	}
	metrics.PipelineRuns.WithLabelValues(name, outcome).Inc()
	return res, err
}

func (p *Pipeline) run(ctx context.Context, name string, ep config.EntryPoint, taskID string) (*Result, error) {
	resolution, err := p.resolver.Resolve(ctx, taskID)
	if err != nil {
		return &Result{TaskID: taskID}, err
	}
	if resolution.Skipped {
		return &Result{TaskID: taskID, Skipped: true, SkipReason: resolution.Reason}, nil
	}
	rec := resolution.Record

	p.propagator.SetWorking(ctx, rec.ID)

	var res *Result
	if ep.Kind == config.KindImage {
		res, err = p.runImage(ctx, ep, rec)
	} else {
		res, err = p.runGenerate(ctx, ep, rec)
	}
	if err != nil {
		p.propagator.SetError(ctx, rec.ID, err.Error())
		return res, err
	}

	if rec.ParentID != "" {
		res.ParentTriggered = p.propagator.TriggerParent(ctx, rec.ID, rec.ParentID, "")
	}
	return res, nil
}

func (p *Pipeline) runGenerate(ctx context.Context, ep config.EntryPoint, rec *task.Record) (*Result, error) {
	res := &Result{TaskID: rec.ID}

	bundle, err := p.assembler.Build(ctx, rec.Instruction, rec.References, assemble.Options{
		MaxReferences:     ep.MaxReferences,
		CharBudget:        ep.CharBudget,
		FirstRefIsPrimary: ep.FirstRefIsPrimary,
	})
	if err != nil {
		return res, err
	}
	res.ResolvedRefs = bundle.Resolved
	res.RequestedRefs = bundle.Requested
	if bundle.Text == "" {
		return res, ErrNoInstruction
	}

	system := p.systemPrompt(ctx, ep, bundle.Text)
	text, model, err := p.invoker.InvokeChain(ctx, ep.Chain, system, bundle.Text)
	if err != nil {
		return res, err
	}
	res.Model = model
	res.ResponseLen = len(text)
	p.logger.Info("Generation succeeded",
		zap.String("task_id", rec.ID),
		zap.String("model", model),
		zap.Int("response_len", len(text)),
		zap.Int("resolved_refs", bundle.Resolved))

	marker := materialize.Provenance{
		Emoji: ep.MarkerEmoji,
		Color: ep.MarkerColor,
		Label: "Generated response · " + model,
	}
	for _, dest := range p.destinations(ep, rec) {
		if _, werr := p.writer.WriteText(ctx, dest, text, marker); werr != nil {
			// Writeback failure never retroactively fails the generation.
			res.WritebackFailed = true
			p.logger.Error("Writeback failed after successful generation",
				zap.String("task_id", rec.ID),
				zap.String("dest_id", dest),
				zap.Error(werr))
			continue
		}
		res.Destinations = append(res.Destinations, dest)
	}

	extra := map[string]workspace.Property{}
	if ep.WriteResponseProperty {
		snippet := text
		if len(snippet) > status.DefaultErrorCap {
			snippet = snippet[:status.DefaultErrorCap]
		}
		off := false
		extra[task.PropResponse] = workspace.Property{RichText: workspace.Text(snippet)}
		extra[task.PropTrigger] = workspace.Property{Checkbox: &off}
	}
	p.propagator.SetDone(ctx, rec.ID, extra)
	return res, nil
}

func (p *Pipeline) runImage(ctx context.Context, ep config.EntryPoint, rec *task.Record) (*Result, error) {
	res := &Result{TaskID: rec.ID}
	if rec.Image.Prompt == "" {
		return res, ErrNoInstruction
	}

	jobID, err := p.jobs.CreateJob(ctx, imagejob.Params{
		Prompt:      rec.Image.Prompt,
		ImageInputs: rec.Image.InputURLs,
		AspectRatio: rec.Image.AspectRatio,
		Resolution:  rec.Image.Resolution,
	})
	if err != nil {
		return res, err
	}
	res.JobID = jobID
	p.logger.Info("Image job submitted",
		zap.String("task_id", rec.ID),
		zap.String("job_id", jobID),
		zap.String("aspect_ratio", rec.Image.AspectRatio),
		zap.String("resolution", rec.Image.Resolution))

	outcome := p.poller.Await(ctx, jobID)
	if outcome.State != imagejob.Succeeded || outcome.ResultURL == "" {
		msg := outcome.FailMsg
		if msg == "" {
			msg = "no result URL returned"
		}
		return res, fmt.Errorf("%w: %s (state %s after %d polls)", ErrJobFailed, msg, outcome.State, outcome.Attempts)
	}
	res.ImageURL = outcome.ResultURL
	res.ResponseLen = len(outcome.ResultURL)

	marker := materialize.Provenance{
		Emoji: ep.MarkerEmoji,
		Color: ep.MarkerColor,
		Label: "Generated: " + clip(rec.Image.Prompt, 100),
	}
	for _, dest := range p.destinations(ep, rec) {
		if werr := p.writer.WriteImage(ctx, dest, outcome.ResultURL, marker); werr != nil {
			res.WritebackFailed = true
			p.logger.Error("Image writeback failed",
				zap.String("task_id", rec.ID),
				zap.String("dest_id", dest),
				zap.Error(werr))
			continue
		}
		res.Destinations = append(res.Destinations, dest)
	}

	note := fmt.Sprintf("Generated image. Aspect: %s, Resolution: %s. Job ID: %s",
		rec.Image.AspectRatio, rec.Image.Resolution, jobID)
	p.propagator.SetDone(ctx, rec.ID, map[string]workspace.Property{
		task.PropImageResultURL: {URL: &res.ImageURL},
		task.PropDecisionsMade:  {RichText: workspace.Text(note)},
	})
	return res, nil
}

// systemPrompt builds the role prompt for one run. Persona classification is
// a pure function of the bundle text; the shared system context, when
// enabled, is prepended best-effort.
func (p *Pipeline) systemPrompt(ctx context.Context, ep config.EntryPoint, bundleText string) string {
	var prompt string
	if ep.PersonaStrategy == config.PersonaKeyword {
		prompt = personas.Classify(bundleText).SystemPrompt + analystPromptSuffix
	} else {
		prompt = neutralSystemPrompt
	}
	if ep.UseSystemContext {
		if sysctx, err := p.sysctx.Get(ctx); err != nil {
			p.logger.Warn("System context unavailable", zap.Error(err))
		} else if sysctx != "" {
			prompt = "## Operating Context\n\n" + sysctx + "\n\n---\n\n" + prompt
		}
	}
	return prompt
}

// destinations resolves the entry point's destination rule against the
// record. The source destination is the first extracted reference; a task
// with no references degrades to the task location so results are never
// dropped.
func (p *Pipeline) destinations(ep config.EntryPoint, rec *task.Record) []string {
	rule := ep.Destination
	if rule == config.DestRecord {
		switch rec.Destination {
		case task.DestinationSource:
			rule = config.DestSource
		case task.DestinationBoth:
			rule = config.DestBoth
		default:
			rule = config.DestTask
		}
	}

	source := ""
	if len(rec.References) > 0 {
		source = rec.References[0].ID
	}
	switch rule {
	case config.DestSource:
		if source != "" {
			return []string{source}
		}
		return []string{rec.ID}
	case config.DestBoth:
		if source != "" && source != rec.ID {
			return []string{rec.ID, source}
		}
		return []string{rec.ID}
	default:
		return []string{rec.ID}
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
