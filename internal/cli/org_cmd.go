package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/cli/formatter"
	"github.com/nhle/collabtask/internal/model"
)

func newOrgsCmd(app *App) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations"},
		Short:   "List your organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			if offline {
				orgs, err := app.Store.GetOrganizations(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.Organizations(orgs))
				return nil
			}

			if err := requireSession(app); err != nil {
				return err
			}
			orgs, err := app.Client.ListOrganizations(ctx)
			if err != nil {
				return err
			}
			if err := app.Store.ReplaceOrganizations(ctx, orgs); err != nil {
				app.logger().Warn("caching organizations failed")
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.Organizations(orgs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Read from the local cache without calling the server")

	cmd.AddCommand(
		newOrgShowCmd(app),
		newOrgCreateCmd(app),
		newOrgUpdateCmd(app),
		newOrgDeleteCmd(app),
		newOrgLeaveCmd(app),
		newOrgStatsCmd(app),
	)

	return cmd
}

func newProjectsCmd(app *App) *cobra.Command {
	var archived, offline bool

	cmd := &cobra.Command{
		Use:   "projects <org-id>",
		Short: "List an organization's projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			orgID := args[0]

			if offline {
				projects, err := app.Store.GetProjects(ctx, orgID, archived)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.Projects(projects))
				return nil
			}

			if err := requireSession(app); err != nil {
				return err
			}
			projects, err := app.Client.ListProjects(ctx, orgID)
			if err != nil {
				return err
			}
			if archived {
				old, err := app.Client.ListArchivedProjects(ctx, orgID)
				if err != nil {
					return err
				}
				projects = append(projects, markArchived(old)...)
			}
			if err := app.Store.ReplaceProjects(ctx, orgID, projects); err != nil {
				app.logger().Warn("caching projects failed")
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.Projects(projects))
			return nil
		},
	}

	cmd.Flags().BoolVar(&archived, "archived", false, "Include archived projects")
	cmd.Flags().BoolVar(&offline, "offline", false, "Read from the local cache without calling the server")

	cmd.AddCommand(
		newProjectShowCmd(app),
		newProjectCreateCmd(app),
		newProjectUpdateCmd(app),
		newProjectArchiveCmd(app),
		newProjectRestoreCmd(app),
		newProjectStatsCmd(app),
	)

	return cmd
}

// markArchived sets Archived on projects from the archive listing, which
// does not always carry the flag.
func markArchived(projects []model.Project) []model.Project {
	for i := range projects {
		projects[i].Archived = true
	}
	return projects
}

func newOrgShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <org-id>",
		Short: "Show an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			org, err := app.Client.GetOrganization(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Organization(*org))
			return nil
		},
	}
}

func newOrgCreateCmd(app *App) *cobra.Command {
	var in model.OrganizationInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organization you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			org, err := app.Client.CreateOrganization(commandContext(cmd), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Created %s (%s)", org.Name, org.ID)))
			return nil
		},
	}

	orgInputFlags(cmd, &in)
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newOrgUpdateCmd(app *App) *cobra.Command {
	var in model.OrganizationInput

	cmd := &cobra.Command{
		Use:   "update <org-id>",
		Short: "Edit an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			ctx := commandContext(cmd)

			// The server replaces every field, so start from the current values.
			current, err := app.Client.GetOrganization(ctx, args[0])
			if err != nil {
				return err
			}
			next := model.OrganizationInput{
				Name:        current.Name,
				Description: current.Description,
				Address:     current.Address,
				Website:     current.Website,
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				next.Name = in.Name
			}
			if flags.Changed("description") {
				next.Description = in.Description
			}
			if flags.Changed("address") {
				next.Address = in.Address
			}
			if flags.Changed("website") {
				next.Website = in.Website
			}

			org, err := app.Client.UpdateOrganization(ctx, args[0], next)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Organization(*org))
			return nil
		},
	}

	orgInputFlags(cmd, &in)

	return cmd
}

func orgInputFlags(cmd *cobra.Command, in *model.OrganizationInput) {
	cmd.Flags().StringVar(&in.Name, "name", "", "Organization name")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.Address, "address", "", "Postal address")
	cmd.Flags().StringVar(&in.Website, "website", "", "Website URL")
}

func newOrgDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <org-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an organization and everything in it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("deleting an organization cannot be undone; pass --yes to confirm")
			}
			if err := requireSession(app); err != nil {
				return err
			}
			if err := app.Client.DeleteOrganization(commandContext(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Deleted "+args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")

	return cmd
}

func newOrgLeaveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <org-id>",
		Short: "Leave an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			if err := app.Client.LeaveOrganization(commandContext(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Left "+args[0]))
			return nil
		},
	}
}

func newOrgStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <org-id>",
		Short: "Show project, member and task counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			stats, err := app.Client.OrganizationAnalytics(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.OrganizationAnalytics(*stats))
			return nil
		},
	}
}

func newMembersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage organization members",
	}

	list := &cobra.Command{
		Use:   "list <org-id>",
		Short: "List members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			members, err := app.Client.ListMembers(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Members(members))
			return nil
		},
	}

	var inviteRole string
	invite := &cobra.Command{
		Use:   "invite <org-id> <email>",
		Short: "Invite someone by email",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[1])
			if err := validateEmail(email); err != nil {
				return err
			}
			if err := validateRole(inviteRole); err != nil {
				return err
			}
			if err := requireSession(app); err != nil {
				return err
			}
			in := model.InviteMemberInput{Email: email, Role: inviteRole}
			if err := app.Client.InviteMember(commandContext(cmd), args[0], in); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Invited "+email+" as "+inviteRole))
			return nil
		},
	}
	invite.Flags().StringVar(&inviteRole, "role", model.RoleMember, "Role once accepted (member or admin)")

	role := &cobra.Command{
		Use:   "role <org-id> <user-id> <role>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRole(args[2]); err != nil {
				return err
			}
			if err := requireSession(app); err != nil {
				return err
			}
			if err := app.Client.UpdateMemberRole(commandContext(cmd), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(args[1]+" is now "+args[2]))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "remove <org-id> <user-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a member",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			if err := app.Client.RemoveMember(commandContext(cmd), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Removed "+args[1]))
			return nil
		},
	}

	cmd.AddCommand(list, invite, role, remove)
	return cmd
}

// validateRole accepts the roles that can be granted. Ownership is not
// transferable from the client.
func validateRole(role string) error {
	switch role {
	case model.RoleMember, model.RoleAdmin:
		return nil
	}
	return fmt.Errorf("invalid role %q: use member or admin", role)
}

func newProjectShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <org-id> <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			project, err := app.Client.GetProject(commandContext(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Project(*project))
			return nil
		},
	}
}

func newProjectCreateCmd(app *App) *cobra.Command {
	var in model.ProjectInput

	cmd := &cobra.Command{
		Use:   "create <org-id>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			project, err := app.Client.CreateProject(commandContext(cmd), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Created %s (%s)", project.Name, project.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Project name")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newProjectUpdateCmd(app *App) *cobra.Command {
	var in model.ProjectInput

	cmd := &cobra.Command{
		Use:   "update <org-id> <project-id>",
		Short: "Edit a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			ctx := commandContext(cmd)

			current, err := app.Client.GetProject(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			next := model.ProjectInput{Name: current.Name, Description: current.Description}
			if cmd.Flags().Changed("name") {
				next.Name = in.Name
			}
			if cmd.Flags().Changed("description") {
				next.Description = in.Description
			}

			project, err := app.Client.UpdateProject(ctx, args[0], args[1], next)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Project(*project))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Project name")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.MarkFlagsOneRequired("name", "description")

	return cmd
}

func newProjectArchiveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "archive <org-id> <project-id>",
		Aliases: []string{"rm"},
		Short:   "Archive a project",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			if err := app.Client.DeleteProject(commandContext(cmd), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Archived "+args[1]))
			return nil
		},
	}
}

func newProjectRestoreCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <org-id> <project-id>",
		Short: "Bring back an archived project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			project, err := app.Client.RestoreProject(commandContext(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Restored "+project.Name))
			return nil
		},
	}
}

func newProjectStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <org-id> <project-id>",
		Short: "Show task counts per status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			stats, err := app.Client.ProjectAnalytics(commandContext(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.ProjectAnalytics(*stats))
			return nil
		},
	}
}
