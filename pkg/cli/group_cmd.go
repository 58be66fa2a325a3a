package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"authzkit/internal/domain"
)

func listUsersGroups(ctx context.Context, s *store, user string) ([]domain.UsersGroup, error) {
	if user != "" {
		return s.readUsersGroups.AssociatedGroupsFor(ctx, user)
	}
	return s.readUsersGroups.List(ctx)
}

func newGroupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage users groups and their memberships",
	}
	cmd.AddCommand(newGroupCreateCmd(opts))
	cmd.AddCommand(newGroupListCmd(opts))
	cmd.AddCommand(newGroupDeleteCmd(opts))
	cmd.AddCommand(newGroupAddMemberCmd(opts))
	cmd.AddCommand(newGroupRemoveMemberCmd(opts))
	return cmd
}

func newGroupCreateCmd(opts *rootOptions) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a users group, optionally under a parent",
		Example: `  authzctl group create Administrators
  authzctl group create DBA --parent Administrators`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			if parent == "" {
				_, err = s.hierarchy.CreateUsersGroup(ctx, args[0])
			} else {
				_, err = s.hierarchy.CreateChildUsersGroup(ctx, parent, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created users group %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent group name")
	return cmd
}

func newGroupListCmd(opts *rootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users groups, or the groups a user is associated with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			groups, err := listUsersGroups(ctx, s, user)
			if err != nil {
				return err
			}
			for _, g := range groups {
				if g.ParentID != nil {
					parent, err := s.readUsersGroups.GetByID(ctx, *g.ParentID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (parent: %s)\n", g.Name, parent.Name)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), g.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "List the groups this user identifier is associated with")
	return cmd
}

func newGroupDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a users group, its memberships, and its permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.usersGroups.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted users group %s\n", args[0])
			return nil
		},
	}
}

func newGroupAddMemberCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <group> <user-id>",
		Short: "Add a user to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.usersGroups.AddMember(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", args[1], args[0])
			return nil
		},
	}
}

func newGroupRemoveMemberCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <group> <user-id>",
		Short: "Remove a user from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.usersGroups.RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[1], args[0])
			return nil
		},
	}
}
