package services

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/userimport/modules/userimport/domain/payload"
	"github.com/iota-uz/userimport/modules/userimport/domain/role"
)

// buildXLSX writes rows to the first sheet; a nil row leaves that sheet row empty.
func buildXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, row := range rows {
		if row == nil {
			continue
		}
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &cells))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type staticRoles struct {
	roles []role.Role
	err   error
	calls int
	mu    sync.Mutex
	// gate, when set, blocks ListRoles until closed
	gate chan struct{}
}

func (s *staticRoles) ListRoles(ctx context.Context) ([]role.Role, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.roles, nil
}

type rejection struct {
	status  int
	message string
}

func (r *rejection) Error() string {
	return fmt.Sprintf("http status=%d: %s", r.status, r.message)
}

func (r *rejection) BackendMessage() string { return r.message }

type recordingCreator struct {
	mu      sync.Mutex
	batches [][]payload.User
	err     error
	// gate, when set, blocks BulkCreate until closed
	gate    chan struct{}
	started chan struct{}
}

func (c *recordingCreator) BulkCreate(ctx context.Context, users []payload.User) error {
	if c.started != nil {
		close(c.started)
	}
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, users)
	return c.err
}

func (c *recordingCreator) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func newLoadedWorkflow(t *testing.T, roles []role.Role, creator UserCreator) *Workflow {
	t.Helper()

	wf := NewWorkflow(&staticRoles{roles: roles}, creator, WorkflowOptions{})
	require.NoError(t, wf.LoadRoles(context.Background()))
	return wf
}

func processRows(t *testing.T, wf *Workflow, rows [][]string) (Summary, error) {
	t.Helper()

	data := buildXLSX(t, rows)
	return wf.ProcessFile("users.xlsx", int64(len(data)), bytes.NewReader(data))
}
