package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowmesh/flowmesh/internal/compiler"
	"github.com/flowmesh/flowmesh/internal/flowengine"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file-or-dir.yaml>",
	Short: "Compile one flow document or a directory of them and print the resulting flow names.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := compileRegistry(args[0])
		if err != nil {
			return err
		}

		flows := reg.FlowNames()
		if len(flows) == 0 {
			fmt.Println("no flows compiled")
			return nil
		}
		fmt.Printf("compiled %d flow(s):\n", len(flows))
		for _, name := range flows {
			edges := reg.EdgeTable(name)
			fmt.Printf("  %s (%d edges)\n", name, len(edges))
		}
		return nil
	},
}

// compileRegistry compiles path as a single document if it's a file,
// or as a whole flow catalog if it's a directory — the same
// file-or-dir dispatch `serve` uses to load its registry.
func compileRegistry(path string) (*flowengine.Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		reg, err := compiler.CompileDir(path)
		if err != nil {
			return nil, fmt.Errorf("compile dir %s: %w", path, err)
		}
		return reg, nil
	}
	reg, err := compiler.CompileFile(path)
	if err != nil {
		return nil, fmt.Errorf("compile file %s: %w", path, err)
	}
	return reg, nil
}
