package main

import (
	"os"
	"time"

	"crm-platform/internal/rbac"

	"github.com/spf13/cobra"
)

// queryFlags select which records are loaded.
type queryFlags struct {
	contact   string
	account   string
	caseID    string
	startDate string
	endDate   string
	limit     int
	offset    int
}

func (q *queryFlags) register(cmd *cobra.Command, withPaging bool) {
	cmd.Flags().StringVar(&q.contact, "contact", "", "Only communications of this contact id")
	cmd.Flags().StringVar(&q.account, "account", "", "Only communications of this account id")
	cmd.Flags().StringVar(&q.caseID, "case", "", "Only communications of this case (pratica) id")
	cmd.Flags().StringVar(&q.startDate, "from", "", "Created at or after (RFC 3339)")
	cmd.Flags().StringVar(&q.endDate, "to", "", "Created at or before (RFC 3339)")
	if withPaging {
		cmd.Flags().IntVar(&q.limit, "limit", 20, "Page size (1-100)")
		cmd.Flags().IntVar(&q.offset, "offset", 0, "Page offset")
	}
}

func buildListCmd(root *rootOptions) *cobra.Command {
	var (
		q        queryFlags
		channel  string
		selected string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List communications newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, root, q, channel, selected)
		},
	}
	q.register(cmd, true)
	cmd.Flags().StringVar(&channel, "channel", "all", "Show only one type (all, call, email, chat)")
	cmd.Flags().StringVar(&selected, "select", "", "Print the detail of this communication below the list")
	return cmd
}

func buildShowCmd(root *rootOptions) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one communication in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, root, q, args[0])
		},
	}
	q.register(cmd, true)
	return cmd
}

func buildExportCmd(root *rootOptions) *cobra.Command {
	var (
		q       queryFlags
		channel string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching communications to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, root, q, channel, out)
		},
	}
	q.register(cmd, false)
	cmd.Flags().StringVar(&channel, "channel", "all", "Export only one type (all, call, email, chat)")
	cmd.Flags().StringVarP(&out, "out", "o", "communications.xlsx", "Output file")
	return cmd
}

func buildTokenCmd() *cobra.Command {
	var (
		userID   string
		role     string
		secret   string
		issuer   string
		audience string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		Long: `Issue a signed access token for local development.

The secret, issuer and audience must match the API's JWT_* settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, userID, role, secret, issuer, audience, ttl)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id (required)")
	cmd.Flags().StringVar(&role, "role", rbac.RoleAgent, "Role (admin, supervisor, agent, auditor)")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret (env JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", os.Getenv("JWT_ISSUER"), "Token issuer (env JWT_ISSUER)")
	cmd.Flags().StringVar(&audience, "audience", os.Getenv("JWT_AUDIENCE"), "Token audience (env JWT_AUDIENCE)")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "Access token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
