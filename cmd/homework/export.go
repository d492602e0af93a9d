package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/homework-solver/internal/export"
)

var (
	exportOut  string
	exportFrom string
	exportTo   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export persisted answers to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		from, err := parseDate(exportFrom)
		if err != nil {
			return err
		}
		to, err := parseDate(exportTo)
		if err != nil {
			return err
		}
		if to != nil {
			end := to.Add(24*time.Hour - time.Nanosecond)
			to = &end
		}

		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := openStores(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		data, err := export.NewService(st.docs, st.results, logger).ExportXLSX(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), exportOut)
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportOut, "out", "o", "answers.xlsx", "output workbook")
	f.StringVar(&exportFrom, "from", "", "only results generated on or after this date (YYYY-MM-DD)")
	f.StringVar(&exportTo, "to", "", "only results generated on or before this date (YYYY-MM-DD)")
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}
