package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskbasket/taskbasket/internal/task"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := eng.Get(cmdContext(), subject(), args[0])
		if err != nil {
			fatalf("loading %s: %v", args[0], err)
		}
		if jsonOutput {
			printJSON(t)
			return
		}
		fmt.Printf("%s\n", t.ID)
		fmt.Printf("  State:      %s\n", t.State)
		fmt.Printf("  Owner:      %s\n", orDash(t.Owner))
		fmt.Printf("  Workbasket: %s\n", t.WorkbasketID)
		fmt.Printf("  Created:    %s\n", t.Created.Format(time.RFC3339))
		fmt.Printf("  Modified:   %s\n", t.Modified.Format(time.RFC3339))
		if t.Claimed != nil {
			fmt.Printf("  Claimed:    %s\n", t.Claimed.Format(time.RFC3339))
		}
		if t.Completed != nil {
			fmt.Printf("  Completed:  %s\n", t.Completed.Format(time.RFC3339))
		}
		for k, v := range t.Custom {
			fmt.Printf("  Custom %s: %s\n", k, v)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Run: func(cmd *cobra.Command, args []string) {
		workbasket, _ := cmd.Flags().GetString("workbasket")
		state, _ := cmd.Flags().GetString("state")
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := task.Filter{
			WorkbasketID: workbasket,
			State:        task.State(state),
			Limit:        limit,
		}
		if cmd.Flags().Changed("owner") {
			filter.Owner = &owner
		}

		tasks, err := eng.List(cmdContext(), subject(), filter)
		if err != nil {
			fatalf("listing tasks: %v", err)
		}
		if jsonOutput {
			printJSON(tasks)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tOWNER\tWORKBASKET")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.State, orDash(t.Owner), t.WorkbasketID)
		}
		w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show a task's audit trail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := eng.History(cmdContext(), subject(), args[0], limit)
		if err != nil {
			fatalf("loading history for %s: %v", args[0], err)
		}
		if jsonOutput {
			printJSON(events)
			return
		}
		for _, ev := range events {
			fmt.Printf("%s  %-18s %s\n", ev.Created.Format(time.RFC3339), ev.EventType, ev.UserID)
			for _, change := range ev.Details.Changes {
				fmt.Printf("    %s: %q -> %q\n", change.FieldName, change.OldValue, change.NewValue)
			}
		}
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	listCmd.Flags().String("workbasket", "", "Filter by workbasket id")
	listCmd.Flags().String("state", "", "Filter by state")
	listCmd.Flags().String("owner", "", "Filter by owner (empty for unowned)")
	listCmd.Flags().Int("limit", 0, "Maximum tasks to return")
	historyCmd.Flags().Int("limit", 0, "Maximum events to return")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
}
