package main

import (
	"github.com/spf13/cobra"
)

var requestReviewCmd = &cobra.Command{
	Use:   "request-review <id>",
	Short: "Hand a claimed task over for review",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := eng.RequestReview(cmdContext(), subject(), args[0])
		if err != nil {
			fatalf("requesting review for %s: %v", args[0], err)
		}
		printTask("Review requested for", t)
	},
}

var requestChangesCmd = &cobra.Command{
	Use:   "request-changes <id>",
	Short: "Send a task under review back to the workbasket",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := eng.RequestChanges(cmdContext(), subject(), args[0])
		if err != nil {
			fatalf("requesting changes for %s: %v", args[0], err)
		}
		printTask("Changes requested for", t)
	},
}

func init() {
	rootCmd.AddCommand(requestReviewCmd)
	rootCmd.AddCommand(requestChangesCmd)
}
