package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSetupCmd() *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactively write a .env file with Switchboard secrets",
		Long: `Prompts for the Slack signing secret, the Discord bot token, and the
database password, then writes them to a .env file. Secret input is not
echoed to the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, envPath)
		},
	}

	cmd.Flags().StringVar(&envPath, "env-file", ".env", "path to the env file to write")
	return cmd
}

func runSetup(cmd *cobra.Command, envPath string) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(envPath); err == nil {
		if !confirmOverwrite(cmd, envPath) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	signingSecret, err := promptSecret(out, "Slack signing secret")
	if err != nil {
		return err
	}
	if signingSecret == "" {
		return fmt.Errorf("signing secret is required")
	}

	discordToken, err := promptSecret(out, "Discord bot token (blank to skip notifications)")
	if err != nil {
		return err
	}

	dbPassword, err := promptSecret(out, "Database password (blank for none)")
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SLACK_SIGNING_SECRET=%s\n", signingSecret)
	if discordToken != "" {
		fmt.Fprintf(&b, "DISCORD_BOT_TOKEN=%s\n", discordToken)
	}
	if dbPassword != "" {
		fmt.Fprintf(&b, "DATABASE_PASSWORD=%s\n", dbPassword)
	}

	if err := os.WriteFile(envPath, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("write %s: %w", envPath, err)
	}

	fmt.Fprintf(out, "Wrote %s\n", envPath)
	fmt.Fprintln(out, "Run \"swb migrate\" next, then register a workspace with \"swb workspace add\".")
	return nil
}

// promptSecret reads a line without echoing it. Falls back to plain stdin
// reads when stdin is not a terminal (tests, piped input).
func promptSecret(out interface{ Write([]byte) (int, error) }, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", scanner.Err()
}

func confirmOverwrite(cmd *cobra.Command, path string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "%s already exists and will be overwritten.\n", path)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
