package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iota-uz/userimport/modules/userimport/services"
)

const defaultTemplateName = "user_import_template.xlsx"

func newTemplateCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the blank import spreadsheet with the expected headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewTemplateService()
			if out == "-" {
				if err := svc.Write(cmd.OutOrStdout()); err != nil {
					return withCode(exitIO, fmt.Errorf("write template: %w", err))
				}
				return nil
			}
			data, err := svc.Build()
			if err != nil {
				return withCode(exitIO, err)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return withCode(exitIO, fmt.Errorf("mkdir %s: %w", filepath.Dir(out), err))
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return withCode(exitIO, fmt.Errorf("write %s: %w", out, err))
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"path": out, "bytes": len(data)})
		},
	}
	cmd.Flags().StringVar(&out, "out", defaultTemplateName, `Output path, or "-" for stdout`)
	return cmd
}
