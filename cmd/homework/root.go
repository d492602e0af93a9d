package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/homework-solver/internal/common"
)

var (
	cfgFile string
	v       = common.NewViper()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "homework",
	Short: "Watch a folder for homework PDFs and answer them with a vision model",
	Long: `homework watches a folder for PDF homework or tests, splits each document into
major questions and their labeled parts, asks the AI service once per major question
and writes one JSON answer set per document into the output folder.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (YAML)")
	pf.String("watch-dir", "", "folder watched for PDFs")
	pf.String("output-dir", "", "folder for JSON results (default <watch-dir>/results)")
	pf.String("state-db", "", "sqlite status table (default <output-dir>/state.db)")
	pf.String("log-level", "", "debug | info | warn | error")

	for key, flag := range map[string]string{
		"watch_dir":  "watch-dir",
		"output_dir": "output-dir",
		"state_db":   "state-db",
		"log.level":  "log-level",
	} {
		cobra.CheckErr(v.BindPFlag(key, pf.Lookup(flag)))
	}

	rootCmd.AddCommand(watchCmd, processCmd, retryCmd, statusCmd, exportCmd)
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*common.Config, *slog.Logger, func(), error) {
	cfg, err := common.LoadConfig(v, cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, cleanup, err := common.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)
	if cfgFile != "" {
		logger.Debug("using config file", "path", cfgFile)
	}
	return cfg, logger, cleanup, nil
}
