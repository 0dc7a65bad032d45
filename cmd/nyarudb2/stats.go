package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nyarudb/nyarudb2/pkg/stats"
	"github.com/spf13/cobra"
)

var shardStatsCmd = &cobra.Command{
	Use:   "shard-stats",
	Short: "Print per-shard document counts and field ranges for a collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, c, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer closeEngine(e)

		shards := c.GetShardStats()
		if len(shards) == 0 {
			fmt.Println("No shards found")
			return nil
		}
		sort.Slice(shards, func(i, j int) bool { return shards[i].ID < shards[j].ID })

		fmt.Printf("%-20s %-10s %s\n", "SHARD", "DOCUMENTS", "FIELD RANGES")
		for _, s := range shards {
			fmt.Printf("%-20s %-10d %s\n", s.ID, s.DocumentCount, formatFieldRanges(s.FieldRanges))
		}
		fmt.Printf("\ntotal documents: %d\n", c.CountDocuments())
		return nil
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "index-stats",
	Short: "Print distinct key counts and ranges for a collection's indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, c, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer closeEngine(e)

		idxStats := c.GetIndexStats()
		if len(idxStats) == 0 {
			fmt.Println("No indexes found (pass --index-fields to rebuild them from disk)")
			return nil
		}

		fields := make([]string, 0, len(idxStats))
		for f := range idxStats {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		fmt.Printf("%-20s %-14s %s\n", "FIELD", "DISTINCT KEYS", "RANGE")
		for _, f := range fields {
			is := idxStats[f]
			fmt.Printf("%-20s %-14d [%s, %s]\n", f, len(is.KeyCounts), is.Range.Min, is.Range.Max)
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Remove a collection's empty shards immediately; shards holding documents are not merged",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, c, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer closeEngine(e)

		removed, err := c.CleanupEmptyShards()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d empty shard(s)\n", removed)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{shardStatsCmd, indexStatsCmd, compactCmd} {
		addCollectionFlags(cmd)
	}
}

func formatFieldRanges(ranges map[string]stats.FieldRange) string {
	fields := make([]string, 0, len(ranges))
	for f := range ranges {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		r := ranges[f]
		parts = append(parts, fmt.Sprintf("%s=[%s,%s]", f, r.Min, r.Max))
	}
	return strings.Join(parts, " ")
}
