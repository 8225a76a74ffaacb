// Package status advances a task record's lifecycle state and signals the
// parent task on completion. Every write here is secondary bookkeeping:
// failures are logged and absorbed so the pipeline's primary output is never
// lost to a status write.
package status

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/task"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// DefaultErrorCap bounds the error text written to the record.
const DefaultErrorCap = 2000

// Propagator performs task status and parent-callback writes.
type Propagator struct {
	ws       workspace.Client
	errorCap int
	logger   *zap.Logger
	now      func() time.Time
}

// NewPropagator creates a propagator. errorCap <= 0 takes the default.
func NewPropagator(ws workspace.Client, errorCap int, logger *zap.Logger) *Propagator {
	if errorCap <= 0 {
		errorCap = DefaultErrorCap
	}
	return &Propagator{ws: ws, errorCap: errorCap, logger: logger, now: time.Now}
}

// SetWorking marks the task in progress and stamps the start time.
func (p *Propagator) SetWorking(ctx context.Context, taskID string) {
	p.set(ctx, taskID, task.StatusWorking, map[string]workspace.Property{
		task.PropStartedAt: dateProp(p.now()),
	})
}

// SetDone marks the task complete, stamps the completion time, and applies
// any extra field updates (result snippet, image URL, decision note).
func (p *Propagator) SetDone(ctx context.Context, taskID string, extra map[string]workspace.Property) {
	props := map[string]workspace.Property{
		task.PropCompletedAt: dateProp(p.now()),
	}
	for k, v := range extra {
		props[k] = v
	}
	p.set(ctx, taskID, task.StatusDone, props)
}

// SetError marks the task failed and records the truncated error text.
func (p *Propagator) SetError(ctx context.Context, taskID, errText string) {
	if len(errText) > p.errorCap {
		errText = errText[:p.errorCap]
	}
	p.set(ctx, taskID, task.StatusError, map[string]workspace.Property{
		task.PropCompletedAt: dateProp(p.now()),
		task.PropErrorLog:    richTextProp(errText),
	})
}

func (p *Propagator) set(ctx context.Context, taskID string, st task.Status, extra map[string]workspace.Property) {
	props := map[string]workspace.Property{
		task.PropStatus: {Status: &workspace.SelectName{Name: string(st)}},
	}
	for k, v := range extra {
		props[k] = v
	}
	if err := p.ws.UpdateProperties(ctx, taskID, props); err != nil {
		metrics.StatusUpdates.WithLabelValues(string(st), "error").Inc()
		p.logger.Warn("Failed to update task status",
			zap.String("task_id", taskID),
			zap.String("status", string(st)),
			zap.Error(err))
		return
	}
	metrics.StatusUpdates.WithLabelValues(string(st), "ok").Inc()
	p.logger.Debug("Task status updated",
		zap.String("task_id", taskID),
		zap.String("status", string(st)))
}

// TriggerParent sets the supervisor trigger flag on the parent record and
// mirrors a snippet of the child's result. Parents subscribe their own
// webhook to that flag, forming the fan-in completion signal across a task
// tree. Fired at most once per pipeline run; no cycle detection is attempted.
func (p *Propagator) TriggerParent(ctx context.Context, childID, parentID, resultSnippet string) bool {
	flag := true
	props := map[string]workspace.Property{
		task.PropSupervisorFlag: {Checkbox: &flag},
	}
	if resultSnippet != "" {
		if len(resultSnippet) > p.errorCap {
			resultSnippet = resultSnippet[:p.errorCap]
		}
		props[task.PropResponse] = richTextProp(resultSnippet)
	}
	if err := p.ws.UpdateProperties(ctx, parentID, props); err != nil {
		p.logger.Warn("Failed to trigger parent task",
			zap.String("task_id", childID),
			zap.String("parent_id", parentID),
			zap.Error(err))
		return false
	}
	metrics.ParentTriggers.Inc()
	p.logger.Info("Parent task triggered",
		zap.String("task_id", childID),
		zap.String("parent_id", parentID))
	return true
}

func dateProp(t time.Time) workspace.Property {
	return workspace.Property{Date: &workspace.DateValue{Start: t.UTC().Format(time.RFC3339)}}
}

func richTextProp(s string) workspace.Property {
	return workspace.Property{RichText: workspace.Text(s)}
}
