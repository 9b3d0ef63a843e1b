package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/accessfile"
	"github.com/taskbasket/taskbasket/internal/debug"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Manage workbasket access entries",
}

var accessSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load access entries from the TOML manifest into the store",
	Run: func(cmd *cobra.Command, args []string) {
		path := manifestPath(cmd)
		entries, err := accessfile.Load(path)
		if err != nil {
			fatalf("loading %s: %v", path, err)
		}
		applyEntries(entries)
		if !jsonOutput {
			cmd.Printf("Seeded %d access entries from %s\n", len(entries), path)
		}
	},
}

var accessWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload access entries whenever the manifest changes",
	Run: func(cmd *cobra.Command, args []string) {
		path := manifestPath(cmd)
		entries, err := accessfile.Load(path)
		if err != nil {
			fatalf("loading %s: %v", path, err)
		}
		applyEntries(entries)
		debug.PrintNormal("Watching %s for changes (ctrl-c to stop)\n", path)

		ctx, stop := signal.NotifyContext(cmdContext(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = accessfile.Watch(ctx, path, func(entries []access.AccessEntry) {
			applyEntries(entries)
			debug.PrintNormal("Reloaded %d access entries\n", len(entries))
		})
		if err != nil && ctx.Err() == nil {
			fatalf("watching %s: %v", path, err)
		}
	},
}

var accessListCmd = &cobra.Command{
	Use:   "list <workbasket-id>",
	Short: "List access entries for a workbasket",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := store.ListAccessEntries(cmdContext(), args[0])
		if err != nil {
			fatalf("listing access entries: %v", err)
		}
		if jsonOutput {
			printJSON(entries)
			return
		}
		for _, e := range entries {
			perms := make([]string, 0, len(e.Permissions))
			for _, p := range e.Permissions.Slice() {
				perms = append(perms, string(p))
			}
			fmt.Printf("%s  %s  [%s]\n", e.WorkbasketID, e.AccessID, strings.Join(perms, ", "))
		}
	},
}

func manifestPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = cfg.AccessManifest
	}
	if path == "" {
		fatalf("no access manifest configured; pass --file or set access_manifest")
	}
	return path
}

func applyEntries(entries []access.AccessEntry) {
	for _, entry := range entries {
		if err := store.CreateAccessEntry(cmdContext(), entry); err != nil {
			fatalf("storing access entry for %s/%s: %v", entry.WorkbasketID, entry.AccessID, err)
		}
	}
}

func init() {
	accessSeedCmd.Flags().String("file", "", "Manifest path (defaults to access_manifest from config)")
	accessWatchCmd.Flags().String("file", "", "Manifest path (defaults to access_manifest from config)")
	accessCmd.AddCommand(accessSeedCmd)
	accessCmd.AddCommand(accessWatchCmd)
	accessCmd.AddCommand(accessListCmd)
	rootCmd.AddCommand(accessCmd)
}
