package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var runArgsJSON string

var runCmd = &cobra.Command{
	Use:   "run <flow-name>",
	Short: "Enqueue a new flow instance and print its id.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dp, err := buildDeps(cfg)
		if err != nil {
			return err
		}

		var nodeArgs any
		if runArgsJSON != "" {
			if err := json.Unmarshal([]byte(runArgsJSON), &nodeArgs); err != nil {
				return fmt.Errorf("--arg is not valid JSON: %w", err)
			}
		}

		run, err := dp.Dispatcher.Enqueue(cmd.Context(), args[0], nodeArgs, nil)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", args[0], err)
		}
		fmt.Println(run.ID.String())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runArgsJSON, "arg", "", "JSON-encoded node_args for the new flow instance")
}
