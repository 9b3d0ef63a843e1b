package main

import (
	"github.com/spf13/cobra"

	"github.com/taskbasket/taskbasket/internal/task"
)

var workbasketCmd = &cobra.Command{
	Use:   "workbasket",
	Short: "Manage workbaskets",
}

var workbasketCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a workbasket (administrative roles only)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key, _ := cmd.Flags().GetString("key")
		name, _ := cmd.Flags().GetString("name")
		wb := &task.Workbasket{ID: args[0], Key: key, Name: name}
		if err := eng.CreateWorkbasket(cmdContext(), subject(), wb); err != nil {
			fatalf("creating workbasket %s: %v", args[0], err)
		}
		if jsonOutput {
			printJSON(wb)
			return
		}
		cmd.Printf("Created workbasket %s\n", wb.ID)
	},
}

func init() {
	workbasketCreateCmd.Flags().String("key", "", "Short workbasket key")
	workbasketCreateCmd.Flags().String("name", "", "Display name")
	workbasketCmd.AddCommand(workbasketCreateCmd)
	rootCmd.AddCommand(workbasketCmd)
}
