// Command tb is the taskbasket CLI: it routes tasks through workbaskets,
// enforcing per-user permission checks on every state transition and
// recording an audit trail of every change.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/config"
	"github.com/taskbasket/taskbasket/internal/debug"
	"github.com/taskbasket/taskbasket/internal/engine"
	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/storage/memory"
	"github.com/taskbasket/taskbasket/internal/storage/sqlite"
	"github.com/taskbasket/taskbasket/internal/task"
)

var (
	jsonOutput bool
	actorFlag  string
	dbFlag     string
	configPath string
	verbose    bool
	quiet      bool

	cfg   config.Config
	store storage.Storage
	eng   *engine.Engine
)

var rootCmd = &cobra.Command{
	Use:           "tb",
	Short:         "Route tasks through workbaskets with audited transitions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug.SetVerbose(verbose)
		debug.SetQuiet(quiet)
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbFlag != "" {
			cfg.DB = dbFlag
		}
		if actorFlag != "" {
			cfg.Actor = actorFlag
		}
		if !needsStore(cmd) {
			return nil
		}
		if cfg.DB == ":memory:" {
			store = memory.New()
		} else {
			store, err = sqlite.New(cfg.DB)
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
		}
		eng = engine.New(store,
			engine.WithCascadeDelete(cfg.History.CascadeDelete),
			engine.WithBulkWorkers(cfg.Bulk.Workers),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

// needsStore reports whether the command touches the task store. Pure
// config commands must not create the database as a side effect.
func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return false
		}
	}
	return true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatalf("%v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Acting user id (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Task database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".taskbasket/config.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
}

// subject builds the acting subject from config plus flags.
func subject() access.Subject {
	s := cfg.Subject()
	if s.UserID == "" {
		s.UserID = os.Getenv("USER")
	}
	return s
}

func cmdContext() context.Context {
	return context.Background()
}

func fatalf(format string, args ...interface{}) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
		fmt.Println(string(out))
	} else {
		fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	}
	os.Exit(1)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("marshaling output: %v", err)
	}
	fmt.Println(string(out))
}

// printTask renders a task either as JSON or in the short human form.
func printTask(verb string, t *task.Task) {
	if jsonOutput {
		printJSON(t)
		return
	}
	owner := t.Owner
	if owner == "" {
		owner = "-"
	}
	fmt.Printf("%s %s  state=%s owner=%s workbasket=%s\n", verb, t.ID, t.State, owner, t.WorkbasketID)
}

// printBulkResult renders the aggregate outcome of a bulk call and exits
// non-zero when any item failed.
func printBulkResult(verb string, res *engine.BulkResult) {
	if jsonOutput {
		failed := make(map[string]string, len(res.FailedIDs()))
		for _, id := range res.FailedIDs() {
			failed[id] = res.ErrorForID(id).Error()
		}
		printJSON(map[string]interface{}{
			"succeeded": res.SucceededIDs(),
			"failed":    failed,
		})
	} else {
		for _, id := range res.SucceededIDs() {
			fmt.Printf("%s %s\n", verb, id)
		}
		for _, id := range res.FailedIDs() {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", id, res.ErrorForID(id))
		}
	}
	if res.ContainsErrors() {
		os.Exit(1)
	}
}
