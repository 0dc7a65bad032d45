package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/engine"
	"github.com/spf13/cobra"
)

var listCollectionsCmd = &cobra.Command{
	Use:   "list-collections",
	Short: "List every collection directory under the database root",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("read database root: %w", err)
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		if len(names) == 0 {
			fmt.Println("No collections found")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

// openCollection opens the database root and returns the named
// collection, rebuilding its indexes from disk if indexFields/
// partitionKey are supplied. It's the CLI's only way to interpret a
// collection's configuration, since that configuration isn't itself
// persisted anywhere the tool can read without it.
func openCollection(cmd *cobra.Command) (*engine.Engine, *engine.Collection, error) {
	path, _ := cmd.Flags().GetString("path")
	name, _ := cmd.Flags().GetString("collection")
	if name == "" {
		return nil, nil, fmt.Errorf("--collection is required")
	}
	partitionKey, _ := cmd.Flags().GetString("partition-key")
	indexFieldsCSV, _ := cmd.Flags().GetString("index-fields")

	var indexFields []string
	if indexFieldsCSV != "" {
		indexFields = strings.Split(indexFieldsCSV, ",")
	}

	e, err := engine.New(engine.DefaultOptions(path))
	if err != nil {
		return nil, nil, err
	}
	c, err := e.GetOrCreateCollection(engine.CollectionConfig{
		Name:         name,
		PartitionKey: partitionKey,
		IndexFields:  indexFields,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, c, nil
}

func closeEngine(e *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Close(ctx)
}

func addCollectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("collection", "", "Collection name (required)")
	cmd.Flags().String("partition-key", "", "Partition key field, if the collection uses one")
	cmd.Flags().String("index-fields", "", "Comma-separated indexed field names to rebuild from disk")
}
