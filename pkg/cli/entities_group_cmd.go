package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newEntitiesGroupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities-group",
		Short: "Manage entities groups and their memberships",
	}
	cmd.AddCommand(newEntitiesGroupCreateCmd(opts))
	cmd.AddCommand(newEntitiesGroupListCmd(opts))
	cmd.AddCommand(newEntitiesGroupDeleteCmd(opts))
	cmd.AddCommand(newEntitiesGroupAddMemberCmd(opts))
	cmd.AddCommand(newEntitiesGroupRemoveMemberCmd(opts))
	return cmd
}

func newEntitiesGroupCreateCmd(opts *rootOptions) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an entities group, optionally under a parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			if parent == "" {
				_, err = s.hierarchy.CreateEntitiesGroup(ctx, args[0])
			} else {
				_, err = s.hierarchy.CreateChildEntitiesGroup(ctx, parent, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created entities group %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent group name")
	return cmd
}

func newEntitiesGroupListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all entities groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			groups, err := s.readEntitiesGroups.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Fprintln(cmd.OutOrStdout(), g.Name)
			}
			return nil
		},
	}
}

func newEntitiesGroupDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an entities group, its memberships, and its permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.entitiesGroups.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted entities group %s\n", args[0])
			return nil
		},
	}
}

func newEntitiesGroupAddMemberCmd(opts *rootOptions) *cobra.Command {
	var entityType string

	cmd := &cobra.Command{
		Use:   "add-member <group> <security-key>",
		Short: "Add an entity to a group by security key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("security key %q is not a UUID", args[1])
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.hierarchy.AssociateEntityWith(cmd.Context(), key, entityType, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", key, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "Entity", "Entity type name")
	return cmd
}

func newEntitiesGroupRemoveMemberCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <group> <security-key>",
		Short: "Remove an entity from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("security key %q is not a UUID", args[1])
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.hierarchy.DetachEntityFromGroup(cmd.Context(), key, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", key, args[0])
			return nil
		},
	}
}
