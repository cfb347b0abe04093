package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/queue"
)

var scanForce bool

var scanAllCmd = &cobra.Command{
	Use:   "scan-all",
	Short: "Queue duplicate detection for every eligible asset",
	Long: `Queue a scan-one job for every eligible asset. With the in-process memory
queue the jobs are also run before the command exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mem, local := svc.Queue.(*queue.Memory)
		if !local {
			if err := svc.Runner.Trigger(ctx, scanForce); err != nil {
				return err
			}
			fmt.Printf("%s scan-all queued\n", color.GreenString("✓"))
			return nil
		}
		status, err := svc.Service.ScanAll(ctx, scanForce)
		if err != nil {
			return err
		}
		if status == asset.StatusSkipped {
			fmt.Println(color.YellowString("duplicate detection is disabled"))
			return nil
		}
		pending := mem.Len()
		if err := mem.Drain(ctx, svc.Runner.Handle); err != nil {
			return err
		}
		fmt.Printf("%s scanned %d assets", color.GreenString("✓"), pending)
		if dead := mem.Dead(); len(dead) > 0 {
			fmt.Printf(", %s", color.RedString("%d failed", len(dead)))
		}
		fmt.Println()
		return nil
	},
}

var scanOneCmd = &cobra.Command{
	Use:   "scan-one <asset-id>",
	Short: "Run duplicate detection for one asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := svc.Service.ScanOne(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", args[0], statusColor(status))
		a, err := svc.Store.LoadForDetection(cmd.Context(), args[0])
		if err == nil && a.GroupID() != "" {
			fmt.Printf("  group: %s\n", color.CyanString(a.GroupID()))
		}
		return nil
	},
}

func statusColor(status asset.Status) string {
	switch status {
	case asset.StatusSuccess:
		return color.GreenString(string(status))
	case asset.StatusSkipped:
		return color.YellowString(string(status))
	}
	return color.RedString(string(status))
}

func init() {
	scanAllCmd.Flags().BoolVar(&scanForce, "force", false, "rescan assets that were already scanned")
	rootCmd.AddCommand(scanAllCmd)
	rootCmd.AddCommand(scanOneCmd)
}
