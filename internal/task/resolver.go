package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/workspace"
)

// ErrNotFound wraps task fetch failures.
var ErrNotFound = errors.New("task not found")

// Resolution is the outcome of resolving a task identifier. Skipped marks a
// routing mismatch: the record is owned by a different automation sharing the
// same inbound trigger, and skipping it is not a failure.
type Resolution struct {
	Record  *Record
	Skipped bool
	Reason  string
}

// Resolver fetches task records and applies the routing guard.
type Resolver struct {
	ws      workspace.Client
	agentID string
	logger  *zap.Logger
}

// NewResolver creates a resolver bound to this pipeline's agent identity.
// An empty agentID disables the routing guard.
func NewResolver(ws workspace.Client, agentID string, logger *zap.Logger) *Resolver {
	return &Resolver{ws: ws, agentID: agentID, logger: logger}
}

// Resolve fetches the task record by identifier. A fetch error maps to
// ErrNotFound; an agent-tag mismatch yields a skipped resolution.
func (r *Resolver) Resolve(ctx context.Context, pageID string) (*Resolution, error) {
	page, err := r.ws.FetchPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, pageID, err)
	}

	rec := FromPage(page)
	if rec.Agent != "" && r.agentID != "" && !strings.EqualFold(rec.Agent, r.agentID) {
		r.logger.Info("Task routed to a different agent, skipping",
			zap.String("task_id", pageID),
			zap.String("task_agent", rec.Agent),
			zap.String("pipeline_agent", r.agentID))
		return &Resolution{
			Record:  rec,
			Skipped: true,
			Reason:  fmt.Sprintf("task owned by agent %q", rec.Agent),
		}, nil
	}

	return &Resolution{Record: rec}, nil
}
