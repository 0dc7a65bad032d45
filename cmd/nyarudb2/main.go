package main

import (
	"fmt"
	"os"

	"github.com/nyarudb/nyarudb2/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nyarudb2",
	Short: "Inspect and maintain a NyaruDB2 database directory",
	Long: `nyarudb2 is a read-mostly inspection tool for a NyaruDB2 database:
list collections, dump shard and index statistics, and remove a
collection's empty shards. It does not expose document CRUD — that
surface belongs to the embedding application, not this binary.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		jsonOut, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("path", "", "Database root directory (required)")
	rootCmd.MarkPersistentFlagRequired("path")

	rootCmd.AddCommand(listCollectionsCmd)
	rootCmd.AddCommand(shardStatsCmd)
	rootCmd.AddCommand(indexStatsCmd)
	rootCmd.AddCommand(compactCmd)
}
