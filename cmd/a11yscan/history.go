package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/a11yscan/a11yscan/internal/config"
	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// This command lists past audits stored in the local database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List past audits stored in the local database",
		Long: `History lists audits recorded by previous 'a11yscan scan' runs.

Without arguments it lists every audited site. With a site URL it lists
that site's audit history: when each audit ran, how many pages were
analyzed, the violation count, and the compliance percentage.

Examples:
  # List all audited sites
  a11yscan history

  # List audit history for a site
  a11yscan history https://example.com

  # Print the full report of a specific audit
  a11yscan history --report-id 5

  # Output in JSON format
  a11yscan history --json https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("report-id", "i", 0,
		"Print the full stored report with this ID (use the history listing to find IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	reportID, err := cmd.Flags().GetInt64("report-id")
	if err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// The history command never creates the database; a missing one
	// just means nothing has been audited yet.
	opts := database.Options{CreateIfNotExists: false, EnableWAL: true}
	db, err := database.Open(config.XDGDataDir(), opts)
	if err != nil {
		return fmt.Errorf("no audit history found (run 'a11yscan scan' first): %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if reportID > 0 {
		return printStoredReport(ctx, cmd, db, reportID)
	}

	if len(args) == 0 {
		return printSites(ctx, cmd, db, asJSON)
	}

	return printSiteHistory(ctx, cmd, db, args[0], asJSON)
}

// printStoredReport prints the full stored report with the given ID.
func printStoredReport(ctx context.Context, cmd *cobra.Command, db *database.HistoryDB, id int64) error {
	siteReport, err := db.GetReportByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load report %d: %w", id, err)
	}
	if siteReport == nil {
		return fmt.Errorf("no stored report with ID %d", id)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(siteReport)
}

// printSites lists every audited site.
func printSites(ctx context.Context, cmd *cobra.Command, db *database.HistoryDB, asJSON bool) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(sites)
	}

	if len(sites) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audits recorded yet.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Audited sites (%d):\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", site)
	}
	return nil
}

// printSiteHistory lists the audit history for one site.
func printSiteHistory(ctx context.Context, cmd *cobra.Command, db *database.HistoryDB, siteURL string, asJSON bool) error {
	if _, err := url.Parse(siteURL); err != nil {
		return fmt.Errorf("invalid site URL %q: %w", siteURL, err)
	}

	history, err := db.GetAuditHistory(ctx, siteURL)
	if err != nil {
		return fmt.Errorf("failed to load audit history: %w", err)
	}

	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(history)
	}

	if len(history) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No audits recorded for %s.\n", siteURL)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIMESTAMP\tPAGES\tVIOLATIONS\tCOMPLIANCE")
	for _, audit := range history {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.1f%%\n",
			audit.ID,
			audit.Timestamp.Format("2006-01-02 15:04"),
			audit.PagesAnalyzed,
			audit.TotalViolations,
			audit.CompliancePercent,
		)
	}
	return w.Flush()
}
