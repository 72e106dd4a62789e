package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/rubybox/internal/catalog"
)

var (
	missingFlag bool
	jsonFlag    bool
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List Ruby versions whose image is available",
	Long: `List configured Ruby versions that can run right now, grouped by minor version.

Examples:
  rubybox versions
  rubybox versions --missing
  rubybox versions --json`,
	Args: cobra.NoArgs,
	RunE: runVersions,
}

func init() {
	versionsCmd.Flags().BoolVar(&missingFlag, "missing", false, "List configured versions whose image is not pulled")
	versionsCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the availability snapshot as JSON")
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if missingFlag {
		missing, err := a.service.MissingVersions(ctx)
		if err != nil {
			return err
		}
		for _, v := range missing {
			image, _ := a.service.Catalog().Image(v)
			fmt.Fprintf(out, "%-12s %s\n", v, image)
		}
		return nil
	}

	snap, err := a.service.AvailableVersions(ctx)
	if err != nil {
		return err
	}

	if jsonFlag {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printSnapshot(out, snap)
	return nil
}

func printSnapshot(out io.Writer, snap catalog.Snapshot) {
	if snap.TotalAvailable == 0 {
		fmt.Fprintf(out, "No Ruby images available (0/%d configured).\n", snap.TotalConfigured)
		return
	}

	groups := make([]string, 0, len(snap.GroupedByMinorVersion))
	for g := range snap.GroupedByMinorVersion {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return catalog.CompareVersions(groups[i], groups[j]) > 0
	})

	for _, g := range groups {
		fmt.Fprintf(out, "%-6s %s\n", g, strings.Join(snap.GroupedByMinorVersion[g], "  "))
	}
	fmt.Fprintf(out, "\nAvailable: %d/%d", snap.TotalAvailable, snap.TotalConfigured)
	if snap.LatestVersion != nil {
		fmt.Fprintf(out, " | Latest: %s", *snap.LatestVersion)
	}
	fmt.Fprintln(out)
}
