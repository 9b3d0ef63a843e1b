package main

import (
	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:   "claim <id...>",
	Short: "Claim tasks for the acting user",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if len(args) == 1 {
			op := eng.Claim
			if force {
				op = eng.ForceClaim
			}
			t, err := op(cmdContext(), subject(), args[0])
			if err != nil {
				fatalf("claiming %s: %v", args[0], err)
			}
			printTask("Claimed", t)
			return
		}
		if force {
			fatalf("--force is only supported for a single task id")
		}
		res, err := eng.ClaimMany(cmdContext(), subject(), args)
		if err != nil {
			fatalf("claiming tasks: %v", err)
		}
		printBulkResult("Claimed", res)
	},
}

var cancelClaimCmd = &cobra.Command{
	Use:   "cancel-claim <id>",
	Short: "Return a claimed task to the workbasket",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		op := eng.CancelClaim
		if force {
			op = eng.ForceCancelClaim
		}
		t, err := op(cmdContext(), subject(), args[0])
		if err != nil {
			fatalf("cancelling claim on %s: %v", args[0], err)
		}
		printTask("Released", t)
	},
}

func init() {
	claimCmd.Flags().Bool("force", false, "Claim regardless of current owner")
	cancelClaimCmd.Flags().Bool("force", false, "Release from any non-terminal state, regardless of owner")
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(cancelClaimCmd)
}
