package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/userimport/modules/userimport/domain/role"
)

var sessionRoles = []role.Role{
	{ID: "r1", Name: "TRAINER"},
	{ID: "r2", Name: "DEPARTMENT_HEAD"},
}

var basicHeader = []string{"First Name", "Last Name", "Email", "Role"}

func TestWorkflow_SubmitsOnlyValidRows(t *testing.T) {
	t.Parallel()

	creator := &recordingCreator{}
	wf := newLoadedWorkflow(t, sessionRoles, creator)

	s, err := processRows(t, wf, [][]string{
		basicHeader,
		{"Ann", "Lee", "ann@x.com", "Department Head"},
		{"Bob", "Ray", "bob@x.com", "Wizard"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, s.Total)
	require.Equal(t, 1, s.Valid)
	require.Equal(t, 1, s.Invalid)
	require.Equal(t, "1 of 2 rows will be imported", s.Message())
	require.Equal(t, wf.ID().String(), s.SessionID)
	require.Equal(t, "users.xlsx", s.File)

	n, err := wf.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, creator.calls())
	require.Len(t, creator.batches[0], 1)
	require.Equal(t, "ann@x.com", creator.batches[0][0].Email)
	require.Equal(t, "r2", creator.batches[0][0].Role.ID)

	_, err = wf.Submit(context.Background())
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, 1, creator.calls())
}

func TestWorkflow_HeaderOnlyFileProducesNoRecords(t *testing.T) {
	t.Parallel()

	wf := newLoadedWorkflow(t, sessionRoles, &recordingCreator{})

	_, err := processRows(t, wf, [][]string{basicHeader, nil, {" "}})
	require.ErrorIs(t, err, ErrEmptyDataset)
	require.Empty(t, wf.Records())
	require.Equal(t, 0, wf.Summary().Total)
}

func TestWorkflow_FatalErrorClearsPreviousFile(t *testing.T) {
	t.Parallel()

	wf := newLoadedWorkflow(t, sessionRoles, &recordingCreator{})

	_, err := processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "TRAINER"}})
	require.NoError(t, err)
	require.Len(t, wf.Records(), 1)

	_, err = processRows(t, wf, [][]string{{"Name", "Email"}, {"Ann", "ann@x.com"}})
	require.ErrorIs(t, err, ErrMissingRequiredColumns)
	require.Empty(t, wf.Records())
	require.Empty(t, wf.RawRows())
}

func TestWorkflow_BlankRowsDoNotChangeRecords(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		basicHeader,
		{"Ann", "Lee", "ann@x.com", "TRAINER"},
		{"Bob", "Ray", "bob@x.com", "HOD"},
	}
	padded := [][]string{
		nil,
		basicHeader,
		{"", " "},
		{"Ann", "Lee", "ann@x.com", "TRAINER"},
		nil,
		nil,
		{"Bob", "Ray", "bob@x.com", "HOD"},
		{"  "},
	}

	plain := newLoadedWorkflow(t, sessionRoles, &recordingCreator{})
	_, err := processRows(t, plain, rows)
	require.NoError(t, err)

	withBlanks := newLoadedWorkflow(t, sessionRoles, &recordingCreator{})
	_, err = processRows(t, withBlanks, padded)
	require.NoError(t, err)

	require.Equal(t, plain.Records(), withBlanks.Records())
}

func TestWorkflow_RequiresRolesBeforeProcessing(t *testing.T) {
	t.Parallel()

	wf := NewWorkflow(&staticRoles{roles: sessionRoles}, &recordingCreator{}, WorkflowOptions{})

	_, err := processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "TRAINER"}})
	require.ErrorIs(t, err, ErrReferenceDataNotLoaded)

	_, err = wf.Submit(context.Background())
	require.ErrorIs(t, err, ErrReferenceDataNotLoaded)
	require.Nil(t, wf.Roles())
}

func TestWorkflow_ConcurrentLoadRolesShareOneFetch(t *testing.T) {
	t.Parallel()

	fetcher := &staticRoles{roles: sessionRoles, gate: make(chan struct{})}
	wf := NewWorkflow(fetcher, &recordingCreator{}, WorkflowOptions{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = wf.LoadRoles(context.Background())
	}()
	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "TRAINER"}})
	require.ErrorIs(t, err, ErrReferenceDataNotLoaded)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = wf.LoadRoles(context.Background())
	}()
	close(fetcher.gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, 2, wf.Roles().Len())

	select {
	case <-wf.Ready():
	default:
		t.Fatal("ready channel not closed after roles loaded")
	}
}

func TestWorkflow_RoleFetchFailureSkipsRoleRulesAndBlocksSubmit(t *testing.T) {
	t.Parallel()

	fetcher := &staticRoles{err: errors.New("503 service unavailable")}
	creator := &recordingCreator{}
	wf := NewWorkflow(fetcher, creator, WorkflowOptions{})

	err := wf.LoadRoles(context.Background())
	require.ErrorIs(t, err, ErrReferenceDataUnavailable)

	s, err := processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "Wizard"}})
	require.NoError(t, err)
	require.Equal(t, 1, s.Valid)
	require.Equal(t, []string{"Roles could not be loaded; role validation was skipped"}, s.Warnings)

	_, err = wf.Submit(context.Background())
	require.ErrorIs(t, err, ErrReferenceDataUnavailable)
	require.Zero(t, creator.calls())

	// a later fetch recovers the session
	fetcher.err = nil
	fetcher.roles = sessionRoles
	require.NoError(t, wf.LoadRoles(context.Background()))

	s, err = processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "Wizard"}, {"Bob", "Ray", "bob@x.com", "HOD"}})
	require.NoError(t, err)
	require.Empty(t, s.Warnings)
	require.Equal(t, 1, s.Valid)

	n, err := wf.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestWorkflow_RolesRecoveredAfterProcessingRevalidatesRecords(t *testing.T) {
	t.Parallel()

	fetcher := &staticRoles{err: errors.New("503 service unavailable")}
	creator := &recordingCreator{}
	wf := NewWorkflow(fetcher, creator, WorkflowOptions{})
	require.ErrorIs(t, wf.LoadRoles(context.Background()), ErrReferenceDataUnavailable)

	s, err := processRows(t, wf, [][]string{
		basicHeader,
		{"Ann", "Lee", "ann@x.com", "Trainer"},
		{"Bob", "Ray", "bob@x.com", "HOD"},
		{"Cy", "Park", "cy@x.com", "Wizard"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, s.Valid)

	fetcher.err = nil
	fetcher.roles = sessionRoles
	require.NoError(t, wf.LoadRoles(context.Background()))

	s = wf.Summary()
	require.Empty(t, s.Warnings)
	require.Equal(t, 1, s.Valid)
	require.Equal(t, 2, s.Invalid)

	records := wf.Records()
	require.Equal(t, []string{"Trainer requires specialization", "Trainer requires years of experience"}, records[0].Errors)
	require.True(t, records[1].IsValid())
	require.Len(t, records[2].Errors, 1)
	require.Contains(t, records[2].Errors[0], `Invalid role "Wizard"`)

	n, err := wf.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, creator.batches, 1)
	require.Len(t, creator.batches[0], 1)
	require.Equal(t, "bob@x.com", creator.batches[0][0].Email)
}

func TestWorkflow_NothingToSubmit(t *testing.T) {
	t.Parallel()

	creator := &recordingCreator{}
	wf := newLoadedWorkflow(t, sessionRoles, creator)

	_, err := processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "", "Wizard"}})
	require.NoError(t, err)

	_, err = wf.Submit(context.Background())
	require.ErrorIs(t, err, ErrNothingToSubmit)
	require.Zero(t, creator.calls())
}

func TestWorkflow_FailedSubmitKeepsRecordsForRetry(t *testing.T) {
	t.Parallel()

	creator := &recordingCreator{err: &rejection{status: 422, message: "email ann@x.com already exists"}}
	wf := newLoadedWorkflow(t, sessionRoles, creator)

	_, err := processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "TRAINER"}, {"Bob", "Ray", "bob@x.com", "HOD"}})
	require.NoError(t, err)

	_, err = wf.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmissionRejected)
	require.Contains(t, err.Error(), "already exists")
	require.False(t, wf.Submitting())
	require.Len(t, wf.Records(), 2)

	require.True(t, wf.RemoveRecord(1))
	require.False(t, wf.RemoveRecord(1))
	creator.err = nil

	n, err := wf.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "bob@x.com", creator.batches[1][0].Email)
}

func TestWorkflow_OneSubmissionAtATime(t *testing.T) {
	t.Parallel()

	creator := &recordingCreator{gate: make(chan struct{}), started: make(chan struct{})}
	wf := newLoadedWorkflow(t, sessionRoles, creator)

	rows := [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "TRAINER"}, {"Bob", "Ray", "bob@x.com", "HOD"}}
	_, err := processRows(t, wf, rows)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := wf.Submit(context.Background())
		done <- err
	}()
	<-creator.started

	require.True(t, wf.Submitting())
	_, err = wf.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmissionInProgress)
	_, err = processRows(t, wf, rows)
	require.ErrorIs(t, err, ErrSubmissionInProgress)
	require.False(t, wf.RemoveRecord(1))
	wf.Reset()
	require.Len(t, wf.Records(), 2)

	close(creator.gate)
	require.NoError(t, <-done)
	require.False(t, wf.Submitting())
	require.Equal(t, 1, creator.calls())
}

func TestWorkflow_RecommendedRowsWarning(t *testing.T) {
	t.Parallel()

	wf := NewWorkflow(&staticRoles{roles: sessionRoles}, &recordingCreator{}, WorkflowOptions{RecommendedRows: 2})
	require.NoError(t, wf.LoadRoles(context.Background()))

	s, err := processRows(t, wf, [][]string{
		basicHeader,
		{"Ann", "Lee", "ann@x.com", "HOD"},
		{"Bob", "Ray", "bob@x.com", "HOD"},
		{"Cid", "Oak", "cid@x.com", "HOD"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, s.Valid)
	require.Equal(t, []string{"File has 3 rows; at most 2 rows per import are recommended"}, s.Warnings)
	require.Equal(t, s.Warnings, wf.Warnings())
}

func TestWorkflow_ResetKeepsRoles(t *testing.T) {
	t.Parallel()

	creator := &recordingCreator{}
	wf := newLoadedWorkflow(t, sessionRoles, creator)

	_, err := processRows(t, wf, [][]string{basicHeader, {"Ann", "Lee", "ann@x.com", "HOD"}})
	require.NoError(t, err)
	_, err = wf.Submit(context.Background())
	require.NoError(t, err)

	wf.Reset()
	require.Empty(t, wf.Records())
	require.NotNil(t, wf.Roles())

	_, err = processRows(t, wf, [][]string{basicHeader, {"Bob", "Ray", "bob@x.com", "HOD"}})
	require.NoError(t, err)
	n, err := wf.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 2, creator.calls())
}
