package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <file.pdf>...",
	Short: "Process PDFs once, synchronously",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		proc := newProcessor(cfg, st, logger)

		failed := 0
		out := cmd.OutOrStdout()
		for _, path := range args {
			res, err := proc.Process(ctx, path)
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(out, "%s\t%s\terror: %v\n", path, res.Status, err)
			case res.Skipped:
				fmt.Fprintf(out, "%s\tskipped\t%s\n", path, res.Reason)
			default:
				fmt.Fprintf(out, "%s\t%s\t%s\n", path, res.Status, res.ResultPath)
			}
			if ctx.Err() != nil {
				break
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents not completed", failed, len(args))
		}
		return nil
	},
}
