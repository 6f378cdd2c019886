package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/auditmesh/config"
	"github.com/hupe1980/auditmesh/logging"
)

func newScanCmd(configPath *string) *cobra.Command {
	var sources []string
	var parallel bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a compliance audit and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			mesh, _, err := buildMesh(cmd, cfg, logging.NoOpLogger{})
			if err != nil {
				return err
			}

			input := map[string]any{}
			if len(sources) > 0 {
				input["sources"] = sources
			}

			workflowType := "full_audit"
			if parallel {
				workflowType = "parallel_scan"
			}

			result, err := mesh.RunWorkflow(cmd.Context(), workflowType, input)
			if err != nil {
				return err
			}

			color.Green("workflow %s completed", result["workflow_id"])
			printResults(result["results"].(map[string]any))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&sources, "sources", "s", nil, "data sources to scan (default: all)")
	cmd.Flags().BoolVarP(&parallel, "parallel", "p", false, "scan sources concurrently without reporting")
	return cmd
}

func printResults(results map[string]any) {
	bold := color.New(color.Bold)

	if final, ok := results["final_result"].(map[string]any); ok {
		bold.Println("report")
		fmt.Printf("  id:   %v\n", final["report_id"])
		fmt.Printf("  path: %v\n", final["path"])
		if report, ok := final["report"].(map[string]any); ok {
			if stats, ok := report["statistics"].(map[string]any); ok {
				fmt.Printf("  findings: %v, gaps: %v\n", stats["finding_count"], stats["gap_count"])
			}
		}
		return
	}

	bold.Println("scan branches")
	fmt.Printf("  successful: %v\n", results["successful"])
	if failed, ok := results["failed"]; ok && failed != nil {
		color.Yellow("  failed: %v", failed)
	}
}
