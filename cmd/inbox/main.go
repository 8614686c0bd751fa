package main

import (
	"log/slog"
	"os"

	"crm-platform/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	// Diagnostics go to stderr; command output goes to stdout.
	slog.SetDefault(logger.NewWithWriter("inbox-cli", "production", os.Stderr))

	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the connection flags shared by every subcommand.
type rootOptions struct {
	apiURL  string
	token   string
	verbose bool
}

func buildRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Unified customer communications inbox",
		Long: `Browse calls, emails and chats of the CRM in one chronological list.

The three sources are fetched concurrently from the communications API.
A source that fails to load is reported and the others are still shown.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", envOr("INBOX_API_URL", "http://localhost:8080/v1"), "Communications API base URL (env INBOX_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("INBOX_API_TOKEN"), "Bearer token (env INBOX_API_TOKEN)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests and source failures to stderr")

	cmd.AddCommand(
		buildListCmd(opts),
		buildShowCmd(opts),
		buildExportCmd(opts),
		buildTokenCmd(),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
