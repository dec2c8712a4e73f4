// File: cmd/audit.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/medipilot/internal/audit"
)

// ErrNoAuditDatabase is returned when the audit command has nothing to query.
var ErrNoAuditDatabase = errors.New("audit queries need a database: set audit.sqlite_path or pass --db")

func newAuditCmd(a *app) *cobra.Command {
	var (
		sessionID string
		limit     int
		asJSON    bool
	)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit records from the audit database",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, map[string]string{"db": "audit.sqlite_path"}); err != nil {
				return err
			}
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Audit().SQLitePath
			if path == "" {
				return ErrNoAuditDatabase
			}
			db, err := audit.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.Recent(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No audit records found.")
				return nil
			}
			printRecords(out, records)
			return nil
		},
	}

	auditCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Only show records for this session ID.")
	auditCmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of records, newest first.")
	auditCmd.Flags().BoolVar(&asJSON, "json", false, "Print the records as JSON.")
	auditCmd.Flags().String("db", "", "Path to the audit database. (Overrides config/env)")
	return auditCmd
}

func printRecords(w io.Writer, records []audit.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tITER\tEVENT\tACTION\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.Time.Local().Format(time.DateTime),
			shortID(r.SessionID),
			r.Iteration,
			r.Event,
			orDash(r.Action),
			orDash(detail(r)))
	}
	_ = tw.Flush()
}

// detail picks the most useful free-text column for a table row.
func detail(r audit.Record) string {
	var parts []string
	if len(r.Coordinate) == 2 {
		parts = append(parts, fmt.Sprintf("(%d,%d)", r.Coordinate[0], r.Coordinate[1]))
	}
	if r.Text != "" {
		parts = append(parts, fmt.Sprintf("%q", r.Text))
	}
	if r.Detail != "" {
		parts = append(parts, r.Detail)
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
