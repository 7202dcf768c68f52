package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/doulaboard/internal/wire"
)

// ClientCmd returns the client command
func ClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage stored clients",
		Long:  `Import, list, inspect and delete the clients held in the local database.`,
	}

	cmd.AddCommand(clientListCmd())
	cmd.AddCommand(clientShowCmd())
	cmd.AddCommand(clientImportCmd())
	cmd.AddCommand(clientDeleteCmd())

	return cmd
}

func clientListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			_, err := wire.ClientAdapterWithOutput(cmd.OutOrStdout()).List(cmd.Context(), status, limit)
			return err
		},
	}
	cmd.Flags().String("status", "", "Filter by status")
	cmd.Flags().Int("limit", 0, "Maximum number of clients to show")
	return cmd
}

func clientShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [client-id]",
		Short: "Show a client by id or any alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := wire.ClientAdapterWithOutput(cmd.OutOrStdout()).Show(cmd.Context(), args[0])
			return err
		},
	}
}

func clientImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import clients from a JSON file",
		Long: `Import clients from a JSON array or object. Use "-" to read stdin.

Identifiers are recognized under any known alias (id, uuid, clientId,
request_form_id, leadId, formId, userId, ...). Clients without any
identifier are assigned a generated one.

Examples:
  doula client import leads.json
  curl -s $API/clients | doula client import -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			_, err = wire.ClientAdapterWithOutput(cmd.OutOrStdout()).Import(cmd.Context(), payload)
			return err
		},
	}
}

func clientDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [client-id]",
		Short: "Delete a client by id or any alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.ClientAdapterWithOutput(cmd.OutOrStdout()).Delete(cmd.Context(), args[0])
		},
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
