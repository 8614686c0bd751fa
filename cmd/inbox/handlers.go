package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"crm-platform/internal/auth"
	"crm-platform/internal/client"
	"crm-platform/internal/communications"
	"crm-platform/internal/config"
	"crm-platform/internal/inbox"
	"crm-platform/internal/rbac"
	"crm-platform/internal/reporting"
	"crm-platform/pkg/logger"

	"github.com/spf13/cobra"
)

func (q queryFlags) filter(paged bool) (communications.CommunicationsFilter, error) {
	in := communications.CommunicationsFilterInput{
		ContactID: q.contact,
		AccountID: q.account,
		CaseID:    q.caseID,
		StartDate: q.startDate,
		EndDate:   q.endDate,
	}
	if paged {
		in.Limit = strconv.Itoa(q.limit)
		in.Offset = strconv.Itoa(q.offset)
	}
	f, err := communications.ValidateCommunicationsFilter(in)
	if err != nil {
		return f, err
	}
	if !paged {
		f.Limit, f.Offset = 0, 0
	}
	return f, nil
}

func newClient(cmd *cobra.Command, root *rootOptions) *client.Client {
	sink := io.Discard
	if root.verbose {
		sink = cmd.ErrOrStderr()
	}
	return client.New(client.Config{
		BaseURL:    strings.TrimRight(root.apiURL, "/"),
		Token:      root.token,
		RetryCount: 2,
	}, logger.NewWithWriter("inbox-cli", "dev", sink))
}

// load fetches one inbox page into a fresh view.
func load(cmd *cobra.Command, root *rootOptions, f communications.CommunicationsFilter) (*inbox.View, *client.Client, error) {
	cl := newClient(cmd, root)
	view := inbox.NewView(inbox.NewLoader(cl, nil, logger.NewWithWriter("inbox-cli", "production", io.Discard)))
	if _, err := view.Refresh(cmd.Context(), f); err != nil {
		view.Close()
		return nil, nil, err
	}
	return view, cl, nil
}

func runList(cmd *cobra.Command, root *rootOptions, q queryFlags, channel, selected string) error {
	typeFilter, err := communications.ParseTypeFilter(channel)
	if err != nil {
		return err
	}
	f, err := q.filter(true)
	if err != nil {
		return err
	}
	view, cl, err := load(cmd, root, f)
	if err != nil {
		return err
	}
	defer view.Close()

	view.SetFilter(typeFilter)
	if selected != "" {
		view.Select(selected)
	}
	snap := view.Snapshot()

	out := cmd.OutOrStdout()
	printSources(out, snap.Sources)
	printList(out, snap.Visible)

	if selected == "" {
		return nil
	}
	if snap.Selected == nil {
		return fmt.Errorf("communication %s is not on this page", selected)
	}
	fmt.Fprintln(out)
	return printDetail(cmd, cl, *snap.Selected)
}

func runShow(cmd *cobra.Command, root *rootOptions, q queryFlags, id string) error {
	f, err := q.filter(true)
	if err != nil {
		return err
	}
	view, cl, err := load(cmd, root, f)
	if err != nil {
		return err
	}
	defer view.Close()

	view.Select(id)
	it, ok := view.Selected()
	if !ok {
		printSources(cmd.ErrOrStderr(), view.Sources())
		return fmt.Errorf("communication %s is not on this page", id)
	}
	return printDetail(cmd, cl, it)
}

func runExport(cmd *cobra.Command, root *rootOptions, q queryFlags, channel, path string) error {
	typeFilter, err := communications.ParseTypeFilter(channel)
	if err != nil {
		return err
	}
	f, err := q.filter(false)
	if err != nil {
		return err
	}
	view, _, err := load(cmd, root, f)
	if err != nil {
		return err
	}
	defer view.Close()

	var failed []string
	for _, s := range inbox.Sources {
		if view.Sources()[s].Status == inbox.StatusFailed {
			failed = append(failed, string(s))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("refusing partial export: %s unavailable", strings.Join(failed, ", "))
	}

	view.SetFilter(typeFilter)
	items := view.Visible()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := reporting.WriteXLSX(file, items); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d communications to %s\n", len(items), path)
	return nil
}

func runToken(cmd *cobra.Command, userID, role, secret, issuer, audience string, ttl time.Duration) error {
	if !rbac.IsKnownRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:      secret,
		JWTIssuer:      issuer,
		JWTAudience:    audience,
		AccessTokenTTL: ttl,
	})
	if err != nil {
		return err
	}
	tok, err := m.Issue(time.Now(), auth.Identity{UserID: userID, Role: role})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

// --- rendering ---

func printSources(w io.Writer, sources map[inbox.SourceName]inbox.SourceState) {
	parts := make([]string, 0, len(inbox.Sources))
	for _, s := range inbox.Sources {
		st, ok := sources[s]
		if !ok {
			continue
		}
		switch st.Status {
		case inbox.StatusReady:
			parts = append(parts, fmt.Sprintf("%s=%s(%d)", s, st.Status, st.Count))
		default:
			parts = append(parts, fmt.Sprintf("%s=%s", s, st.Status))
		}
	}
	fmt.Fprintf(w, "sources: %s\n", strings.Join(parts, " "))
	for _, s := range inbox.Sources {
		if st := sources[s]; st.Status == inbox.StatusFailed && st.Err != nil {
			fmt.Fprintf(w, "warning: %s unavailable: %v\n", s, st.Err)
		}
	}
}

func printList(w io.Writer, items []communications.UnifiedCommunication) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tDIR\tCONTACT\tSUMMARY\tID")
	for _, it := range items {
		dir := "-"
		if it.Direction != nil {
			dir = string(*it.Direction)
		}
		contact := it.ContactName
		if contact == "" {
			contact = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.Timestamp.Local().Format("2006-01-02 15:04"), it.Type, dir, contact, summary(it), it.ID)
	}
	_ = tw.Flush()
	if len(items) == 0 {
		fmt.Fprintln(w, "no communications")
	}
}

func summary(it communications.UnifiedCommunication) string {
	switch r := it.Detail.(type) {
	case communications.CallRecord:
		return fmt.Sprintf("%s %s %ds", r.PhoneNumber, r.Outcome, r.Duration)
	case communications.EmailRecord:
		return r.Subject
	case communications.ChatRecord:
		return fmt.Sprintf("%s %s", r.Channel, r.Status)
	}
	return ""
}

func printDetail(cmd *cobra.Command, cl *client.Client, it communications.UnifiedCommunication) error {
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(it); err != nil {
		return err
	}

	chat, ok := it.Chat()
	if !ok {
		return nil
	}
	msgs, err := cl.ListChatMessages(cmd.Context(), chat.ID)
	if err != nil {
		var nf *communications.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return fmt.Errorf("load transcript: %w", err)
	}
	fmt.Fprintln(out, "\ntranscript:")
	for _, m := range msgs {
		fmt.Fprintf(out, "  [%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.Sender, m.Message)
	}
	return nil
}
