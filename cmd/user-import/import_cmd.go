package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/userimport/modules/userimport/domain/record"
	"github.com/iota-uz/userimport/modules/userimport/services"
	"github.com/iota-uz/userimport/pkg/configuration"
)

type importOptions struct {
	file        string
	apply       bool
	excludeRows []int
	report      string
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate a spreadsheet of users and, with --apply, create them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Spreadsheet to import, .xlsx or .xls (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Submit valid rows to the API (default is dry-run)")
	cmd.Flags().IntSliceVar(&opts.excludeRows, "exclude-row", nil, "Data row number to leave out; repeatable")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write a JSON report of every record to this path")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type rowIssues struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

type importResult struct {
	services.Summary
	Message   string      `json:"message"`
	DryRun    bool        `json:"dry_run"`
	Excluded  []int       `json:"excluded,omitempty"`
	Submitted int         `json:"submitted"`
	Issues    []rowIssues `json:"issues,omitempty"`
}

type importReportV1 struct {
	SchemaVersion int                    `json:"schema_version"`
	GeneratedAt   time.Time              `json:"generated_at"`
	Summary       services.Summary       `json:"summary"`
	Records       []*record.ImportRecord `json:"records"`
}

func runImport(ctx context.Context, out io.Writer, g *globalOptions, opts importOptions) error {
	if strings.TrimSpace(opts.file) == "" {
		return withCode(exitUsage, fmt.Errorf("--file is required"))
	}

	conf := configuration.Use()
	log := commandLogger("import")
	client, err := newAPIClient(g, log)
	if err != nil {
		return err
	}

	wf := services.NewWorkflow(client, client, services.WorkflowOptions{
		MaxFileSize:     conf.Import.MaxFileSize,
		RecommendedRows: conf.Import.RecommendedRows,
		Logger:          log,
	})
	defer pushMetrics(context.WithoutCancel(ctx), log, wf.ID().String())

	// A failed roles fetch still lets the file be checked; Submit refuses later.
	if err := wf.LoadRoles(ctx); err != nil {
		log.WithError(err).Warn("user_import.roles.unavailable")
	}

	if err := processFile(wf, opts.file); err != nil {
		return err
	}

	excluded, err := excludeRows(wf, opts.excludeRows)
	if err != nil {
		return err
	}

	if opts.report != "" {
		report := importReportV1{
			SchemaVersion: 1,
			GeneratedAt:   time.Now().UTC(),
			Summary:       wf.Summary(),
			Records:       wf.Records(),
		}
		if err := writeJSONFile(opts.report, &report); err != nil {
			return err
		}
	}

	summary := wf.Summary()
	result := importResult{
		Summary:  summary,
		Message:  summary.Message(),
		DryRun:   !opts.apply,
		Excluded: excluded,
		Issues:   collectIssues(wf.Records()),
	}
	if !opts.apply {
		return writeJSONLine(out, &result)
	}

	n, err := wf.Submit(ctx)
	if err != nil {
		log.WithFields(logrus.Fields{"valid": summary.Valid}).WithError(err).Error("user_import.import.failed")
		return err
	}
	result.Submitted = n
	result.Message = fmt.Sprintf("%d users created", n)
	return writeJSONLine(out, &result)
}

func processFile(wf *services.Workflow, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("open --file: %w", err))
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return withCode(exitIO, fmt.Errorf("stat %s: %w", path, err))
	}
	if _, err := wf.ProcessFile(filepath.Base(path), st.Size(), f); err != nil {
		var ie *services.ImportError
		if errors.As(err, &ie) {
			return withCode(importExitCode(ie), fmt.Errorf("%s: %w", filepath.Base(path), err))
		}
		return withCode(exitIO, err)
	}
	return nil
}

func excludeRows(wf *services.Workflow, rows []int) ([]int, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	out := append([]int(nil), rows...)
	sort.Ints(out)
	for _, row := range out {
		if !wf.RemoveRecord(row) {
			return nil, withCode(exitUsage, fmt.Errorf("--exclude-row %d: no such data row", row))
		}
	}
	return out, nil
}

func collectIssues(records []*record.ImportRecord) []rowIssues {
	var out []rowIssues
	for _, rec := range records {
		if rec.IsValid() {
			continue
		}
		out = append(out, rowIssues{Row: rec.Row, Errors: rec.Errors})
	}
	return out
}
