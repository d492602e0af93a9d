package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/homework-solver/constants"
)

var statusFilter string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List documents from the status table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var status constants.DocumentStatus
		if statusFilter != "" {
			s, err := constants.ParseDocumentStatus(statusFilter)
			if err != nil {
				return err
			}
			status = s
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

		docs, err := st.docs.List(cmd.Context(), status)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOCUMENT\tSTATUS\tATTEMPTS\tFIRST SEEN\tSOURCE\tDETAILS")
		for _, d := range docs {
			details := d.ResultPath
			if details == "" {
				details = d.ErrorDetails
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				d.ID, d.Status, d.Attempts, d.FirstSeenAt.Local().Format(time.DateTime), d.SourcePath, details)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "only documents in this state (pending, in_progress, completed, failed)")
}
