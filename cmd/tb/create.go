package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskbasket/taskbasket/internal/task"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task in a workbasket",
	Run: func(cmd *cobra.Command, args []string) {
		workbasket, _ := cmd.Flags().GetString("workbasket")
		if workbasket == "" {
			fatalf("--workbasket is required")
		}
		id, _ := cmd.Flags().GetString("id")
		customFlags, _ := cmd.Flags().GetStringArray("custom")

		custom := make(map[string]string, len(customFlags))
		for _, kv := range customFlags {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				fatalf("--custom expects key=value, got %q", kv)
			}
			custom[key] = value
		}
		if len(custom) == 0 {
			custom = nil
		}

		t, err := eng.Create(cmdContext(), subject(), &task.Task{
			ID:           id,
			WorkbasketID: workbasket,
			Custom:       custom,
		})
		if err != nil {
			fatalf("creating task: %v", err)
		}
		printTask("Created", t)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id...>",
	Short: "Delete tasks (administrative roles only)",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			if err := eng.Delete(cmdContext(), subject(), args[0]); err != nil {
				fatalf("deleting %s: %v", args[0], err)
			}
			if !jsonOutput {
				cmd.Printf("Deleted %s\n", args[0])
			}
			return
		}
		res, err := eng.DeleteMany(cmdContext(), subject(), args)
		if err != nil {
			fatalf("deleting tasks: %v", err)
		}
		printBulkResult("Deleted", res)
	},
}

func init() {
	createCmd.Flags().String("workbasket", "", "Target workbasket id")
	createCmd.Flags().String("id", "", "Task id (generated when omitted)")
	createCmd.Flags().StringArray("custom", nil, "Custom attribute as key=value (repeatable)")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
}
