package status

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/task"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

type update struct {
	pageID string
	props  map[string]workspace.Property
}

type updateRecorder struct {
	updates []update
	fail    bool
}

func (u *updateRecorder) FetchPage(context.Context, string) (*workspace.Page, error) {
	return nil, fmt.Errorf("not implemented")
}

func (u *updateRecorder) FetchDocument(context.Context, string) (*workspace.Document, error) {
	return nil, fmt.Errorf("not implemented")
}

func (u *updateRecorder) AppendBlocks(context.Context, string, []workspace.Block) error { return nil }

func (u *updateRecorder) UpdateProperties(_ context.Context, pageID string, props map[string]workspace.Property) error {
	if u.fail {
		return fmt.Errorf("workspace down")
	}
	u.updates = append(u.updates, update{pageID: pageID, props: props})
	return nil
}

func fixedClock() func() time.Time {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestSetWorking(t *testing.T) {
	rec := &updateRecorder{}
	p := NewPropagator(rec, 0, zap.NewNop())
	p.now = fixedClock()

	p.SetWorking(context.Background(), "t1")

	require.Len(t, rec.updates, 1)
	u := rec.updates[0]
	assert.Equal(t, "t1", u.pageID)
	assert.Equal(t, "Working", u.props[task.PropStatus].Status.Name)
	assert.Equal(t, "2026-03-14T09:26:53Z", u.props[task.PropStartedAt].Date.Start)
	_, hasCompleted := u.props[task.PropCompletedAt]
	assert.False(t, hasCompleted)
}

func TestSetDoneWithExtras(t *testing.T) {
	rec := &updateRecorder{}
	p := NewPropagator(rec, 0, zap.NewNop())
	p.now = fixedClock()

	p.SetDone(context.Background(), "t1", map[string]workspace.Property{
		task.PropResponse: {RichText: workspace.Text("snippet")},
	})

	require.Len(t, rec.updates, 1)
	u := rec.updates[0]
	assert.Equal(t, "Done", u.props[task.PropStatus].Status.Name)
	assert.Equal(t, "2026-03-14T09:26:53Z", u.props[task.PropCompletedAt].Date.Start)
	assert.Equal(t, "snippet", workspace.PlainText(u.props[task.PropResponse].RichText))
}

func TestSetErrorTruncates(t *testing.T) {
	rec := &updateRecorder{}
	p := NewPropagator(rec, 50, zap.NewNop())

	p.SetError(context.Background(), "t1", strings.Repeat("e", 500))

	require.Len(t, rec.updates, 1)
	u := rec.updates[0]
	assert.Equal(t, "Error", u.props[task.PropStatus].Status.Name)
	assert.Len(t, workspace.PlainText(u.props[task.PropErrorLog].RichText), 50)
}

func TestStatusWritesAreBestEffort(t *testing.T) {
	rec := &updateRecorder{fail: true}
	p := NewPropagator(rec, 0, zap.NewNop())

	// None of these may panic or surface the workspace failure.
	p.SetWorking(context.Background(), "t1")
	p.SetDone(context.Background(), "t1", nil)
	p.SetError(context.Background(), "t1", "boom")
	assert.Empty(t, rec.updates)
}

func TestTriggerParent(t *testing.T) {
	rec := &updateRecorder{}
	p := NewPropagator(rec, 0, zap.NewNop())

	ok := p.TriggerParent(context.Background(), "child-1", "parent-1", "child result")
	assert.True(t, ok)

	require.Len(t, rec.updates, 1)
	u := rec.updates[0]
	assert.Equal(t, "parent-1", u.pageID, "flag lands on the parent record")
	require.NotNil(t, u.props[task.PropSupervisorFlag].Checkbox)
	assert.True(t, *u.props[task.PropSupervisorFlag].Checkbox)
	assert.Equal(t, "child result", workspace.PlainText(u.props[task.PropResponse].RichText))
}

func TestTriggerParentNoSnippet(t *testing.T) {
	rec := &updateRecorder{}
	p := NewPropagator(rec, 0, zap.NewNop())

	ok := p.TriggerParent(context.Background(), "child-1", "parent-1", "")
	assert.True(t, ok)

	require.Len(t, rec.updates, 1)
	_, hasResponse := rec.updates[0].props[task.PropResponse]
	assert.False(t, hasResponse)
}

func TestTriggerParentFailure(t *testing.T) {
	rec := &updateRecorder{fail: true}
	p := NewPropagator(rec, 0, zap.NewNop())

	assert.False(t, p.TriggerParent(context.Background(), "child-1", "parent-1", ""))
}
