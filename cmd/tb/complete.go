package main

import (
	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete <id...>",
	Short: "Complete tasks",
	Long: `Complete one or more tasks. With several ids, each task is processed
independently: failures are reported per id and do not abort the rest.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if len(args) == 1 {
			op := eng.Complete
			if force {
				op = eng.ForceComplete
			}
			t, err := op(cmdContext(), subject(), args[0])
			if err != nil {
				fatalf("completing %s: %v", args[0], err)
			}
			printTask("Completed", t)
			return
		}
		bulk := eng.CompleteMany
		if force {
			bulk = eng.ForceCompleteMany
		}
		res, err := bulk(cmdContext(), subject(), args)
		if err != nil {
			fatalf("completing tasks: %v", err)
		}
		printBulkResult("Completed", res)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <id...>",
	Short: "Cancel tasks",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			t, err := eng.Cancel(cmdContext(), subject(), args[0])
			if err != nil {
				fatalf("cancelling %s: %v", args[0], err)
			}
			printTask("Cancelled", t)
			return
		}
		res, err := eng.CancelMany(cmdContext(), subject(), args)
		if err != nil {
			fatalf("cancelling tasks: %v", err)
		}
		printBulkResult("Cancelled", res)
	},
}

var terminateCmd = &cobra.Command{
	Use:   "terminate <id>",
	Short: "Terminate a task (administrative roles only)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := eng.Terminate(cmdContext(), subject(), args[0])
		if err != nil {
			fatalf("terminating %s: %v", args[0], err)
		}
		printTask("Terminated", t)
	},
}

func init() {
	completeCmd.Flags().Bool("force", false, "Complete from any non-terminal state, claiming first if unclaimed")
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(terminateCmd)
}
