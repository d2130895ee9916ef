package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/VatsalSy/MPTimer/internal/app"
	"github.com/VatsalSy/MPTimer/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	configErr error
	rootCmd   = &cobra.Command{
		Use:   "mptimer",
		Short: "Estimate the hidden MP regeneration tick from polled observations",
		Long: `MPTimer estimates when a fixed-interval server regeneration tick fires,
using only locally polled resource values, and predicts the latest point in
each tick window at which a timed action can still be started.

Features:
  • Live tick bar with commit threshold marker
  • Deterministic host simulator with recorded ground truth
  • SQLite journal of recorded sessions for offline replay
  • Prometheus metrics for the estimator`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.mptimer/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}

func initConfig() {
	_, configErr = config.Load(cfgFile)
	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", config.ConfigPath(viper.GetViper()))
	}
}

// newApp initializes the coordinator for a command. Callers must Stop it.
func newApp() (*app.App, error) {
	if configErr != nil {
		return nil, configErr
	}
	if verbose {
		viper.Set("log.level", "debug")
	}

	a, err := app.New(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := a.Initialize(); err != nil {
		return nil, err
	}
	return a, nil
}
