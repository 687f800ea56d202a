package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iota-uz/userimport/modules/userimport/domain/role"
)

func newRolesCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the roles a spreadsheet may reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := commandLogger("roles")
			client, err := newAPIClient(g, log)
			if err != nil {
				return err
			}
			roles, err := client.ListRoles(cmd.Context())
			if err != nil {
				return withCode(exitAPI, fmt.Errorf("list roles: %w", err))
			}
			if roles == nil {
				roles = []role.Role{}
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"roles": roles})
		},
	}
}
