package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"authzkit/internal/domain"
	"authzkit/internal/service"
)

// cliUser adapts a --user flag value to domain.User; the identifier doubles
// as the display name.
type cliUser struct {
	info domain.SecurityInfo
}

func newCLIUser(value string) (cliUser, error) {
	info, err := domain.NewSecurityInfo(value, value)
	if err != nil {
		return cliUser{}, err
	}
	return cliUser{info: info}, nil
}

func (u cliUser) SecurityInfo() domain.SecurityInfo { return u.info }

func newPermissionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Grant and deny permissions",
	}
	cmd.AddCommand(newPermissionSetCmd(opts, "allow", true))
	cmd.AddCommand(newPermissionSetCmd(opts, "deny", false))
	return cmd
}

func newPermissionSetCmd(opts *rootOptions, use string, allow bool) *cobra.Command {
	var (
		user          string
		group         string
		entity        string
		entityType    string
		entitiesGroup string
		level         int
	)

	cmd := &cobra.Command{
		Use:   use + " <operation>",
		Short: fmt.Sprintf("Record an %s permission", use),
		Example: fmt.Sprintf(`  authzctl permission %s /Account/Edit --user user-1
  authzctl permission %s /Account --group Administrators --entities-group "Important Accounts" --level 5`, use, use),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (user == "") == (group == "") {
				return fmt.Errorf("exactly one of --user or --group is required")
			}
			if entity != "" && entitiesGroup != "" {
				return fmt.Errorf("--entity and --entities-group are mutually exclusive")
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			var forStage *service.ForStage
			if allow {
				forStage = s.builder.Allow(args[0])
			} else {
				forStage = s.builder.Deny(args[0])
			}

			var onStage *service.OnStage
			if user != "" {
				u, err := newCLIUser(user)
				if err != nil {
					return err
				}
				onStage = forStage.For(u)
			} else {
				onStage = forStage.ForGroup(group)
			}

			var levelStage *service.LevelStage
			switch {
			case entity != "":
				key, err := uuid.Parse(entity)
				if err != nil {
					return fmt.Errorf("entity %q is not a UUID", entity)
				}
				levelStage = onStage.On(key, entityType)
			case entitiesGroup != "":
				levelStage = onStage.OnGroup(entitiesGroup)
			default:
				levelStage = onStage.OnEverything()
			}

			saveStage := levelStage.Level(level)
			p, err := saveStage.Save(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded permission %s\n", p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Subject user identifier")
	cmd.Flags().StringVar(&group, "group", "", "Subject users group name")
	cmd.Flags().StringVar(&entity, "entity", "", "Target entity security key (UUID)")
	cmd.Flags().StringVar(&entityType, "type", "Entity", "Entity type name, used with --entity")
	cmd.Flags().StringVar(&entitiesGroup, "entities-group", "", "Target entities group name")
	cmd.Flags().IntVar(&level, "level", domain.DefaultPermissionLevel, "Tie-break level")
	return cmd
}
