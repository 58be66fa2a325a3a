package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		user   string
		entity string
	)

	cmd := &cobra.Command{
		Use:   "check <operation>",
		Short: "Decide whether a user may perform an operation",
		Example: `  authzctl check /Account/Edit --user user-1
  authzctl check /Account/Edit --user user-1 --entity 0d38b957-3c3f-4a96-9af9-2bde087cd3ba`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			u, err := newCLIUser(user)
			if err != nil {
				return err
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			var allowed bool
			if entity == "" {
				allowed, err = s.authz.IsAllowed(ctx, u, args[0])
			} else {
				key, kerr := uuid.Parse(entity)
				if kerr != nil {
					return fmt.Errorf("entity %q is not a UUID", entity)
				}
				allowed, err = s.authz.IsAllowedOn(ctx, u, key, args[0])
			}
			if err != nil {
				return err
			}

			if allowed {
				fmt.Fprintln(cmd.OutOrStdout(), "allowed")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "denied")
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User identifier")
	cmd.Flags().StringVar(&entity, "entity", "", "Entity security key (UUID)")
	return cmd
}

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var (
		user   string
		entity string
	)

	cmd := &cobra.Command{
		Use:   "explain <operation>",
		Short: "Explain an authorization decision, ranked candidates first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			u, err := newCLIUser(user)
			if err != nil {
				return err
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			if entity == "" {
				info, err := s.authz.GetAuthorizationInformation(ctx, u, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}

			key, err := uuid.Parse(entity)
			if err != nil {
				return fmt.Errorf("entity %q is not a UUID", entity)
			}
			info, err := s.authz.GetAuthorizationInformationOn(ctx, u, key, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User identifier")
	cmd.Flags().StringVar(&entity, "entity", "", "Entity security key (UUID)")
	return cmd
}
