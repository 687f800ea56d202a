package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/userimport/modules/userimport/domain/payload"
	"github.com/iota-uz/userimport/modules/userimport/domain/record"
	"github.com/iota-uz/userimport/modules/userimport/domain/role"
	"github.com/iota-uz/userimport/pkg/logging"
)

// DefaultRecommendedRows is the soft row limit surfaced to the user.
const DefaultRecommendedRows = 100

const rolesSkippedWarning = "Roles could not be loaded; role validation was skipped"

// RoleFetcher lists every role the backend knows.
type RoleFetcher interface {
	ListRoles(ctx context.Context) ([]role.Role, error)
}

type rolesState int

const (
	rolesPending rolesState = iota
	rolesLoading
	rolesLoaded
	rolesFailed
)

type WorkflowOptions struct {
	MaxFileSize     int64
	RecommendedRows int
	Logger          *logrus.Entry
	Now             func() time.Time
}

func (o *WorkflowOptions) setDefaults() {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.RecommendedRows <= 0 {
		o.RecommendedRows = DefaultRecommendedRows
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Summary tells the caller what a submission would do before committing to it.
type Summary struct {
	SessionID string   `json:"session_id"`
	File      string   `json:"file"`
	Total     int      `json:"total"`
	Valid     int      `json:"valid"`
	Invalid   int      `json:"invalid"`
	Warnings  []string `json:"warnings,omitempty"`
}

func (s Summary) Message() string {
	return fmt.Sprintf("%d of %d rows will be imported", s.Valid, s.Total)
}

// Workflow owns one import session: the role snapshot, the file being
// processed, its records and the submission flag.
type Workflow struct {
	id        uuid.UUID
	fetcher   RoleFetcher
	reader    *SpreadsheetReader
	validator *RowValidator
	submitter *BatchSubmitter
	opts      WorkflowOptions
	log       *logrus.Entry

	mu         sync.Mutex
	rolesState rolesState
	roleIndex  *role.Index
	rolesErr   error
	ready      chan struct{}

	file     string
	rawRows  []RawRow
	records  []*record.ImportRecord
	warnings []string

	// rolesSkipped marks records validated without a role snapshot.
	rolesSkipped bool
	submitting   bool
	submitted    bool
}

func NewWorkflow(fetcher RoleFetcher, creator UserCreator, opts WorkflowOptions) *Workflow {
	opts.setDefaults()
	id := uuid.New()
	log := opts.Logger.WithField("session_id", id.String())
	return &Workflow{
		id:        id,
		fetcher:   fetcher,
		reader:    NewSpreadsheetReader(opts.MaxFileSize),
		validator: NewRowValidator(),
		submitter: NewBatchSubmitter(creator, log),
		opts:      opts,
		log:       log,
		ready:     make(chan struct{}),
	}
}

func (w *Workflow) ID() uuid.UUID {
	return w.id
}

// Ready is closed once the current role fetch has finished, successfully or not.
func (w *Workflow) Ready() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

// LoadRoles fetches the role snapshot. Concurrent callers share one fetch.
// A failed fetch can be retried; until then role rules are skipped.
func (w *Workflow) LoadRoles(ctx context.Context) error {
	w.mu.Lock()
	switch w.rolesState {
	case rolesLoaded:
		w.mu.Unlock()
		return nil
	case rolesLoading:
		ready := w.ready
		w.mu.Unlock()
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.rolesErr
	case rolesFailed:
		w.ready = make(chan struct{})
	}
	w.rolesState = rolesLoading
	ready := w.ready
	w.mu.Unlock()

	roles, err := w.fetcher.ListRoles(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	defer close(ready)
	if err != nil {
		w.rolesState = rolesFailed
		w.roleIndex = nil
		w.rolesErr = newImportError(ErrReferenceDataUnavailable, "", err)
		w.log.WithError(err).Warn("user_import.roles.fetch_failed")
		return w.rolesErr
	}
	w.rolesState = rolesLoaded
	w.roleIndex = role.NewIndex(roles)
	w.rolesErr = nil
	w.log.WithField("roles", len(roles)).Info("user_import.roles.loaded")
	if w.rolesSkipped {
		w.revalidateLocked()
	}
	return nil
}

// revalidateLocked re-checks records that were processed while roles were
// unavailable, now that role rules can run.
func (w *Workflow) revalidateLocked() {
	for _, rec := range w.records {
		w.validator.Validate(rec, w.roleIndex)
	}
	kept := w.warnings[:0]
	for _, msg := range w.warnings {
		if msg != rolesSkippedWarning {
			kept = append(kept, msg)
		}
	}
	w.warnings = kept
	w.rolesSkipped = false

	s := w.summaryLocked()
	w.log.WithFields(logrus.Fields{
		"file":    w.file,
		"valid":   s.Valid,
		"invalid": s.Invalid,
	}).Info("user_import.file.revalidated")
}

// Roles returns the role snapshot, or nil when it is not loaded.
func (w *Workflow) Roles() *role.Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roleIndex
}

// ProcessFile parses, normalizes and validates one spreadsheet, replacing
// any previously processed file. Fatal errors leave no records behind.
func (w *Workflow) ProcessFile(name string, size int64, r io.Reader) (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return Summary{}, ErrSubmissionInProgress
	}
	if w.rolesState == rolesPending || w.rolesState == rolesLoading {
		return Summary{}, ErrReferenceDataNotLoaded
	}

	w.resetFileLocked()
	w.file = name

	err := w.processLocked(name, size, r)
	getMetrics().filesTotal.WithLabelValues(fileResult(err)).Inc()
	if err != nil {
		w.log.WithError(err).WithField("file", name).Warn("user_import.file.rejected")
		w.resetFileLocked()
		return Summary{}, err
	}

	s := w.summaryLocked()
	w.log.WithFields(logrus.Fields{
		"file":    name,
		"total":   s.Total,
		"valid":   s.Valid,
		"invalid": s.Invalid,
	}).Info("user_import.file.processed")
	return s, nil
}

func (w *Workflow) processLocked(name string, size int64, r io.Reader) error {
	rows, err := w.reader.Read(name, size, r)
	if err != nil {
		return err
	}
	mapping, err := MapHeader(rows[0])
	if err != nil {
		return err
	}

	w.rawRows = rows
	roles := w.roleIndex
	if w.rolesState == rolesFailed {
		roles = nil
		w.rolesSkipped = true
		w.warnings = append(w.warnings, rolesSkippedWarning)
	}

	m := getMetrics()
	w.records = make([]*record.ImportRecord, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		rec := NormalizeRow(i+1, raw, mapping)
		w.validator.Validate(rec, roles)
		m.rowsTotal.WithLabelValues(string(rec.Status)).Inc()
		w.records = append(w.records, rec)
	}
	if n := len(w.records); n > w.opts.RecommendedRows {
		w.warnings = append(w.warnings, fmt.Sprintf("File has %d rows; at most %d rows per import are recommended", n, w.opts.RecommendedRows))
	}
	return nil
}

// Records returns the current records in row order.
func (w *Workflow) Records() []*record.ImportRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*record.ImportRecord, len(w.records))
	copy(out, w.records)
	return out
}

// RawRows returns the non-blank rows of the current file, header first.
func (w *Workflow) RawRows() []RawRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]RawRow, len(w.rawRows))
	copy(out, w.rawRows)
	return out
}

// RemoveRecord drops the record for data row row so it is never submitted.
func (w *Workflow) RemoveRecord(row int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return false
	}
	for i, rec := range w.records {
		if rec.Row == row {
			w.records = append(w.records[:i], w.records[i+1:]...)
			return true
		}
	}
	return false
}

func (w *Workflow) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summaryLocked()
}

func (w *Workflow) summaryLocked() Summary {
	s := Summary{
		SessionID: w.id.String(),
		File:      w.file,
		Total:     len(w.records),
	}
	for _, rec := range w.records {
		if rec.IsValid() {
			s.Valid++
		} else {
			s.Invalid++
		}
	}
	if len(w.warnings) > 0 {
		s.Warnings = append([]string(nil), w.warnings...)
	}
	return s
}

// Warnings returns non-fatal notices about the current file.
func (w *Workflow) Warnings() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.warnings...)
}

// Payloads builds the bulk-create users for every valid record.
func (w *Workflow) Payloads() ([]payload.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payloadsLocked()
}

func (w *Workflow) payloadsLocked() ([]payload.User, error) {
	now := w.opts.Now()
	users := make([]payload.User, 0, len(w.records))
	for _, rec := range w.records {
		if !rec.IsValid() {
			continue
		}
		u, err := BuildPayload(rec, w.roleIndex, now)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// Submit sends every valid record in one bulk-create call and returns how
// many users were sent. Only one submission may be in flight; after a
// failure the records stay in place for a retry.
func (w *Workflow) Submit(ctx context.Context) (int, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return 0, ErrSubmissionInProgress
	}
	if w.submitted {
		w.mu.Unlock()
		return 0, ErrAlreadySubmitted
	}
	switch w.rolesState {
	case rolesPending, rolesLoading:
		w.mu.Unlock()
		return 0, ErrReferenceDataNotLoaded
	case rolesFailed:
		err := w.rolesErr
		w.mu.Unlock()
		return 0, err
	}
	users, err := w.payloadsLocked()
	if err != nil {
		w.mu.Unlock()
		w.log.WithError(err).Error("user_import.submit.inconsistent_role")
		return 0, err
	}
	if len(users) == 0 {
		w.mu.Unlock()
		return 0, ErrNothingToSubmit
	}
	w.submitting = true
	w.mu.Unlock()

	err = w.submitter.Submit(ctx, users)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return 0, err
	}
	w.submitted = true
	return len(users), nil
}

// Submitting reports whether a bulk-create call is in flight.
func (w *Workflow) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Reset discards the current file and its records. The role snapshot is
// kept. It is a no-op while a submission is in flight.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return
	}
	w.resetFileLocked()
}

func (w *Workflow) resetFileLocked() {
	w.file = ""
	w.rawRows = nil
	w.records = nil
	w.warnings = nil
	w.rolesSkipped = false
	w.submitted = false
}
