package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"authzkit/internal/declarative"
)

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var allowUnknown bool

	cmd := &cobra.Command{
		Use:   "apply <policy.yaml>",
		Short: "Apply a declarative policy file to the store",
		Long: `Reconciles the store against a policy file: operations, users groups,
entities groups, memberships, and permissions. Applying the same file twice
leaves the store unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := declarative.LoadFileWithOptions(args[0],
				declarative.LoadOptions{AllowUnknownFields: allowUnknown})
			if err != nil {
				return err
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			applier := declarative.NewApplier(
				s.operations, s.usersGroups, s.entitiesGroups, s.entities, s.permissions, nil)
			if err := applier.Apply(cmd.Context(), spec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowUnknown, "allow-unknown-fields", false, "Tolerate unknown YAML fields")
	return cmd
}
