package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/userimport/modules/userimport/infrastructure/api"
	"github.com/iota-uz/userimport/pkg/configuration"
)

// globalOptions override the API settings from the environment.
type globalOptions struct {
	baseURL       string
	authorization string
}

func newRootCmd() *cobra.Command {
	var g globalOptions

	cmd := &cobra.Command{
		Use:           "user-import",
		Short:         "Bulk-create users from an Excel spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "API base URL (default: $API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&g.authorization, "authorization", "", "Authorization header value (default: $API_AUTHORIZATION)")

	cmd.AddCommand(newImportCmd(&g))
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newRolesCmd(&g))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}

func commandLogger(name string) *logrus.Entry {
	return configuration.Use().Logger().WithField("cmd", name)
}

func newAPIClient(g *globalOptions, log *logrus.Entry) (*api.Client, error) {
	conf := configuration.Use()
	opts := api.Options{
		BaseURL:         conf.API.BaseURL,
		Authorization:   conf.API.Authorization,
		RolesPath:       conf.API.RolesPath,
		RolesPublic:     conf.API.RolesPublic,
		UsersBulkPath:   conf.API.UsersBulkPath,
		Timeout:         conf.API.Timeout,
		RequestIDHeader: conf.RequestIDHeader,
		Logger:          log,
	}
	if g.baseURL != "" {
		opts.BaseURL = g.baseURL
	}
	if g.authorization != "" {
		opts.Authorization = g.authorization
	}
	client, err := api.NewClient(opts)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("--base-url: %w", err))
	}
	return client, nil
}
