package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/reporting"
	"github.com/caseledger/caseledger/internal/reporting/export"
	"github.com/caseledger/caseledger/internal/shared"
)

func newExportCmd(open Opener) *cobra.Command {
	var (
		username string
		view     string
		from     string
		to       string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a report CSV on behalf of an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := openDeps(cmd, open)
			if err != nil {
				return err
			}
			defer cleanup()
			if deps.Actors == nil || deps.Reports == nil {
				return errors.New("export: record store not configured")
			}

			ctx := cmd.Context()
			actor, err := deps.Actors.Resolve(ctx, username)
			if err != nil {
				return fmt.Errorf("export: resolve %s: %w", username, err)
			}
			if actor.Status == access.StatusDisabled {
				return shared.ErrAccountDisabled
			}
			if err := access.Require(actor, access.CategoryReports, access.ActionExport); err != nil {
				return err
			}

			req := reporting.Request{View: reporting.ParseView(view), Window: reporting.ParseWindow(from, to)}
			report, err := deps.Reports.Build(ctx, actor, req)
			if err != nil {
				return err
			}
			data, err := export.Serialize(report.View, report)
			if err != nil {
				return err
			}

			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			path := exportPath(out, export.FileName(report.Office, deps.Now()))
			if err := os.WriteFile(path, data, 0o640); err != nil {
				return fmt.Errorf("export: write %s: %w", path, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Username the export runs as (required)")
	cmd.Flags().StringVar(&view, "view", string(reporting.ViewSummary), "Report view: summary or detailed")
	cmd.Flags().StringVar(&from, "from", "", "Window start (YYYY-MM-DD, optional)")
	cmd.Flags().StringVar(&to, "to", "", "Window end (YYYY-MM-DD, optional)")
	cmd.Flags().StringVar(&out, "out", ".", "Output directory, file path, or - for stdout")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// exportPath places name inside out when out is a directory.
func exportPath(out, name string) string {
	if out == "" {
		return name
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}
