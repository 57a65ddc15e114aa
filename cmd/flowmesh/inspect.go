package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	flowrunrepo "github.com/flowmesh/flowmesh/internal/data/repos/flowrun"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <flow-run-id>",
	Short: "Print a flow instance's current status and snapshot as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("%s is not a valid flow run id: %w", args[0], err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		dbsvc, err := newDBService(cfg, log)
		if err != nil {
			return err
		}
		repo := flowrunrepo.NewRepo(dbsvc.DB(), log)

		run, err := repo.GetByID(dbctx.Context{Ctx: cmd.Context()}, id)
		if err != nil {
			return fmt.Errorf("load flow run %s: %w", id, err)
		}
		if run == nil {
			return fmt.Errorf("flow run %s not found", id)
		}

		out := map[string]any{
			"id":          run.ID,
			"flow_name":   run.FlowName,
			"status":      run.Status,
			"attempts":    run.Attempts,
			"error":       run.Error,
			"next_run_at": run.NextRunAt,
		}
		if len(run.Snapshot) > 0 {
			var snap any
			if err := json.Unmarshal(run.Snapshot, &snap); err == nil {
				out["snapshot"] = snap
			}
		}

		enc, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
		return nil
	},
}
