package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage registered Slack workspaces",
	}

	cmd.AddCommand(newWorkspaceAddCmd())
	cmd.AddCommand(newWorkspaceListCmd())
	cmd.AddCommand(newWorkspaceDeactivateCmd())
	return cmd
}

func newWorkspaceAddCmd() *cobra.Command {
	var (
		configPath   string
		teamID       string
		botToken     string
		trackerKind  string
		trackerToken string
		destination  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a Slack workspace",
		Long: `Registers a Slack workspace so its message actions are accepted.
The destination is a ClickUp list ID or a GitHub "owner/repo" pair,
depending on the tracker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkspaceAdd(cmd, configPath, teamID, botToken, trackerKind, trackerToken, destination)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&teamID, "team-id", "", "Slack team ID (e.g. T01ABC234)")
	cmd.Flags().StringVar(&botToken, "bot-token", "", "Slack bot token for this workspace")
	cmd.Flags().StringVar(&trackerKind, "tracker", models.TrackerClickUp, "tracker backend: clickup or github")
	cmd.Flags().StringVar(&trackerToken, "tracker-token", "", "API token for the tracker")
	cmd.Flags().StringVar(&destination, "destination", "", "default task destination (list ID or owner/repo)")
	cmd.MarkFlagRequired("team-id")
	cmd.MarkFlagRequired("bot-token")
	cmd.MarkFlagRequired("tracker-token")
	cmd.MarkFlagRequired("destination")
	return cmd
}

func runWorkspaceAdd(cmd *cobra.Command, configPath, teamID, botToken, trackerKind, trackerToken, destination string) error {
	out := cmd.OutOrStdout()

	if trackerKind != models.TrackerClickUp && trackerKind != models.TrackerGitHub {
		return fmt.Errorf("unknown tracker %q (want clickup or github)", trackerKind)
	}

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ws := &models.Workspace{
		SlackTeamID:        teamID,
		SlackBotToken:      botToken,
		TrackerKind:        trackerKind,
		TrackerToken:       trackerToken,
		DefaultDestination: destination,
		Active:             true,
	}
	if err := gormDB.Create(ws).Error; err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	fmt.Fprintf(out, "Workspace %s registered (id %d, tracker %s, destination %s)\n",
		teamID, ws.ID, trackerKind, destination)
	return nil
}

func newWorkspaceListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkspaceList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runWorkspaceList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var workspaces []models.Workspace
	if err := gormDB.Order("id").Find(&workspaces).Error; err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}
	if len(workspaces) == 0 {
		fmt.Fprintln(out, "No workspaces registered.")
		return nil
	}

	fmt.Fprintf(out, "%-4s %-12s %-8s %-20s %s\n", "ID", "TEAM", "TRACKER", "DESTINATION", "STATUS")
	for _, ws := range workspaces {
		status := "active"
		if !ws.Active {
			status = "inactive"
		}
		fmt.Fprintf(out, "%-4d %-12s %-8s %-20s %s\n",
			ws.ID, ws.SlackTeamID, ws.TrackerKind, ws.DefaultDestination, status)
	}
	return nil
}

func newWorkspaceDeactivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deactivate <team-id>",
		Short: "Deactivate a workspace so its requests are rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkspaceDeactivate(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runWorkspaceDeactivate(cmd *cobra.Command, configPath, teamID string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	result := gormDB.Model(&models.Workspace{}).
		Where("slack_team_id = ?", teamID).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate workspace: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no workspace with team ID %s", teamID)
	}

	fmt.Fprintf(out, "Workspace %s deactivated\n", teamID)
	return nil
}

func connectFromConfig(configPath string) (*gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return db.Connect(cfg.Database)
}
