package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retryProcess bool

var retryCmd = &cobra.Command{
	Use:   "retry <document-id|path>",
	Short: "Move a failed document back to pending and process it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		proc := newProcessor(cfg, st, logger)

		doc, err := proc.Retrigger(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", doc.ID, doc.Status)
		if !retryProcess {
			return nil
		}
		res, err := proc.Process(ctx, doc.SourcePath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.DocumentID, res.Status, res.ResultPath)
		return nil
	},
}

func init() {
	retryCmd.Flags().BoolVar(&retryProcess, "process", true, "process the document right away")
}
