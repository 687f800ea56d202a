package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/userimport/modules/testkit/fakeapi"
	"github.com/iota-uz/userimport/modules/userimport/domain/role"
	"github.com/iota-uz/userimport/modules/userimport/services"
)

var backendRoles = []role.Role{
	{ID: "r1", Name: "TRAINER"},
	{ID: "r2", Name: "DEPARTMENT_HEAD"},
	{ID: "r3", Name: "TRAINEE"},
}

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &cells))
	}
	path := filepath.Join(t.TempDir(), "users.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResult(t *testing.T, out string) importResult {
	t.Helper()

	var res importResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

var mixedRows = [][]string{
	{"First Name", "Last Name", "Email", "Role"},
	{"Ann", "Lee", "ann@x.com", "Department Head"},
	{"Bob", "Ray", "bob@x.com", "Wizard"},
}

func TestImportCmd_DryRunReportsWithoutSubmitting(t *testing.T) {
	srv := fakeapi.New(t, fakeapi.Options{Roles: backendRoles, Token: "Bearer t"})
	path := writeWorkbook(t, mixedRows)

	out, err := runCLI(t, "import", "--file", path, "--base-url", srv.URL(), "--authorization", "Bearer t")
	require.NoError(t, err)

	res := decodeResult(t, out)
	require.True(t, res.DryRun)
	require.Equal(t, 2, res.Total)
	require.Equal(t, 1, res.Valid)
	require.Equal(t, "1 of 2 rows will be imported", res.Message)
	require.Len(t, res.Issues, 1)
	require.Equal(t, 2, res.Issues[0].Row)
	require.Zero(t, srv.BulkCalls())
}

func TestImportCmd_ApplySubmitsValidRows(t *testing.T) {
	srv := fakeapi.New(t, fakeapi.Options{Roles: backendRoles, Token: "Bearer t"})
	path := writeWorkbook(t, mixedRows)
	reportPath := filepath.Join(t.TempDir(), "out", "report.json")

	out, err := runCLI(t, "import", "--file", path, "--apply", "--report", reportPath,
		"--base-url", srv.URL(), "--authorization", "Bearer t")
	require.NoError(t, err)

	res := decodeResult(t, out)
	require.False(t, res.DryRun)
	require.Equal(t, 1, res.Submitted)
	require.Equal(t, "1 users created", res.Message)

	created := srv.Created()
	require.Len(t, created, 1)
	require.Equal(t, "ann@x.com", created[0].Email)
	require.Equal(t, "r2", created[0].Role.ID)
	require.Equal(t, 1, srv.BulkCalls())

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report importReportV1
	require.NoError(t, json.Unmarshal(raw, &report))
	require.Equal(t, 1, report.SchemaVersion)
	require.Len(t, report.Records, 2)
	require.Equal(t, "error", string(report.Records[1].Status))
}

func TestImportCmd_ExcludedRowsAreNotSubmitted(t *testing.T) {
	srv := fakeapi.New(t, fakeapi.Options{Roles: backendRoles})
	path := writeWorkbook(t, mixedRows)

	_, err := runCLI(t, "import", "--file", path, "--apply", "--exclude-row", "1", "--base-url", srv.URL())
	require.ErrorIs(t, err, services.ErrNothingToSubmit)
	require.Equal(t, exitValidation, exitCode(err))
	require.Zero(t, srv.BulkCalls())

	_, err = runCLI(t, "import", "--file", path, "--exclude-row", "7", "--base-url", srv.URL())
	require.Equal(t, exitUsage, exitCode(err))
}

func TestImportCmd_BackendRejection(t *testing.T) {
	srv := fakeapi.New(t, fakeapi.Options{Roles: backendRoles})
	srv.FailBulk(http.StatusUnprocessableEntity, "VALIDATION", "phoneNumber is invalid")
	path := writeWorkbook(t, mixedRows)

	_, err := runCLI(t, "import", "--file", path, "--apply", "--base-url", srv.URL())
	require.ErrorIs(t, err, services.ErrSubmissionRejected)
	require.Contains(t, err.Error(), "phoneNumber is invalid")
	require.Equal(t, exitRejected, exitCode(err))
	require.Empty(t, srv.Created())
}

func TestImportCmd_RolesUnavailable(t *testing.T) {
	srv := fakeapi.New(t, fakeapi.Options{Roles: backendRoles})
	srv.FailRoles(http.StatusServiceUnavailable, "maintenance")
	path := writeWorkbook(t, mixedRows)

	out, err := runCLI(t, "import", "--file", path, "--base-url", srv.URL())
	require.NoError(t, err)
	res := decodeResult(t, out)
	require.Equal(t, 2, res.Valid)
	require.Contains(t, res.Warnings, "Roles could not be loaded; role validation was skipped")

	_, err = runCLI(t, "import", "--file", path, "--apply", "--base-url", srv.URL())
	require.ErrorIs(t, err, services.ErrReferenceDataUnavailable)
	require.Equal(t, exitAPI, exitCode(err))
	require.Zero(t, srv.BulkCalls())
}

func TestImportCmd_FileLevelFailures(t *testing.T) {
	srv := fakeapi.New(t, fakeapi.Options{Roles: backendRoles})

	headerOnly := writeWorkbook(t, [][]string{mixedRows[0]})
	_, err := runCLI(t, "import", "--file", headerOnly, "--base-url", srv.URL())
	require.ErrorIs(t, err, services.ErrEmptyDataset)
	require.Equal(t, exitValidation, exitCode(err))

	noRole := writeWorkbook(t, [][]string{{"First Name", "Last Name", "Email"}, {"Ann", "Lee", "ann@x.com"}})
	_, err = runCLI(t, "import", "--file", noRole, "--base-url", srv.URL())
	require.ErrorIs(t, err, services.ErrMissingRequiredColumns)
	require.Contains(t, err.Error(), "role")

	csv := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(csv, []byte("first_name\nAnn\n"), 0o644))
	_, err = runCLI(t, "import", "--file", csv, "--base-url", srv.URL())
	require.ErrorIs(t, err, services.ErrUnsupportedFormat)

	_, err = runCLI(t, "import", "--file", filepath.Join(t.TempDir(), "missing.xlsx"), "--base-url", srv.URL())
	require.Equal(t, exitUsage, exitCode(err))
}

func TestImportCmd_InvalidBaseURL(t *testing.T) {
	path := writeWorkbook(t, mixedRows)

	_, err := runCLI(t, "import", "--file", path, "--base-url", "not a url")
	require.Equal(t, exitUsage, exitCode(err))
}

func TestExitCode(t *testing.T) {
	require.Equal(t, exitOK, exitCode(nil))
	require.Equal(t, 1, exitCode(errors.New("boom")))
	require.Equal(t, exitIO, exitCode(withCode(exitIO, errors.New("disk full"))))
	require.Equal(t, exitRejected, exitCode(services.ErrSubmissionRejected))
	require.Equal(t, exitAPI, exitCode(services.ErrReferenceDataNotLoaded))
	require.Equal(t, exitValidation, exitCode(services.ErrOversizedFile))
}
