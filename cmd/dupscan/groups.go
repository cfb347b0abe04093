package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups <owner-id>",
	Short: "List duplicate groups of an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := svc.Store.Groups(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println(color.HiBlackString("No duplicate groups"))
			return nil
		}
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		for _, g := range groups {
			fmt.Printf("%s (%d assets)\n", cyan(g.ID), len(g.AssetIDs))
			for _, id := range g.AssetIDs {
				fmt.Printf("  %s\n", id)
			}
		}
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group <group-id>",
	Short: "Show the members of a duplicate group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := svc.Store.Group(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, id := range g.AssetIDs {
			fmt.Println(id)
		}
		return nil
	},
}

var deleteGroupCmd = &cobra.Command{
	Use:   "delete-group <group-id>",
	Short: "Detach every member of a duplicate group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Store.DeleteGroup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s group %s deleted\n", color.GreenString("✓"), args[0])
		return nil
	},
}

var deleteGroupsCmd = &cobra.Command{
	Use:   "delete-groups <owner-id>",
	Short: "Detach every asset of an owner from its duplicate group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := svc.Store.DeleteGroups(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %d assets detached\n", color.GreenString("✓"), n)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <asset-id>",
	Short: "Show the group changes of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := svc.Store.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		orNone := func(s *string) string {
			if s == nil {
				return gray("-")
			}
			return *s
		}
		for _, e := range entries {
			fmt.Printf("%s  %s → %s\n", gray(e.ChangedAt.Format("2006-01-02 15:04:05")), orNone(e.OldDuplicateID), orNone(e.NewDuplicateID))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(deleteGroupCmd)
	rootCmd.AddCommand(deleteGroupsCmd)
	rootCmd.AddCommand(historyCmd)
}
