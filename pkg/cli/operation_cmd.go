package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOperationCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operation",
		Short: "Manage operations",
	}
	cmd.AddCommand(newOperationCreateCmd(opts))
	cmd.AddCommand(newOperationListCmd(opts))
	cmd.AddCommand(newOperationDeleteCmd(opts))
	return cmd
}

func newOperationCreateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an operation (ancestors are created as needed)",
		Example: `  authzctl operation create /Account
  authzctl operation create /Account/Edit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			op, err := s.operations.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created operation %s\n", op.Name)
			return nil
		},
	}
}

func newOperationListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ops, err := s.readOperations.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, op := range ops {
				fmt.Fprintln(cmd.OutOrStdout(), op.Name)
			}
			return nil
		},
	}
}

func newOperationDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an operation and its permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.operations.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted operation %s\n", args[0])
			return nil
		},
	}
}
