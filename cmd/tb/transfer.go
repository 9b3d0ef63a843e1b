package main

import (
	"github.com/spf13/cobra"
)

var transferCmd = &cobra.Command{
	Use:   "transfer <id...>",
	Short: "Reroute tasks to another workbasket",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dest, _ := cmd.Flags().GetString("to")
		if dest == "" {
			fatalf("--to is required")
		}
		if len(args) == 1 {
			t, err := eng.Transfer(cmdContext(), subject(), args[0], dest)
			if err != nil {
				fatalf("transferring %s: %v", args[0], err)
			}
			printTask("Transferred", t)
			return
		}
		res, err := eng.TransferMany(cmdContext(), subject(), args, dest)
		if err != nil {
			fatalf("transferring tasks: %v", err)
		}
		printBulkResult("Transferred", res)
	},
}

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a task as read",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		unread, _ := cmd.Flags().GetBool("unread")
		t, err := eng.SetRead(cmdContext(), subject(), args[0], !unread)
		if err != nil {
			fatalf("updating read flag on %s: %v", args[0], err)
		}
		printTask("Updated", t)
	},
}

func init() {
	transferCmd.Flags().String("to", "", "Destination workbasket id")
	readCmd.Flags().Bool("unread", false, "Mark as unread instead")
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(readCmd)
}
