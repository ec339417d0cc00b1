package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var collectionLimit int

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect and manage the vector collection",
}

var collectionCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runCollectionCount,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runCollectionList,
}

var collectionGetCmd = &cobra.Command{
	Use:   "get <id>...",
	Short: "Print stored chunks as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCollectionGet,
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete stored chunks by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCollectionDelete,
}

var collectionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every chunk, keeping the collection",
	Args:  cobra.NoArgs,
	RunE:  runCollectionReset,
}

var collectionDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the collection and all its chunks",
	Args:  cobra.NoArgs,
	RunE:  runCollectionDrop,
}

func init() {
	collectionListCmd.Flags().IntVarP(&collectionLimit, "limit", "n", 20, "maximum number of chunks to list (0 = all)")

	collectionCmd.AddCommand(collectionCountCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionGetCmd)
	collectionCmd.AddCommand(collectionDeleteCmd)
	collectionCmd.AddCommand(collectionResetCmd)
	collectionCmd.AddCommand(collectionDropCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionCount(cmd *cobra.Command, _ []string) error {
	if err := connect(cmd); err != nil {
		return err
	}
	n, err := vectorStore.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	cmd.Printf("%s: %d chunks\n", vectorStore.Name(), n)
	return nil
}

func runCollectionList(cmd *cobra.Command, _ []string) error {
	if err := connect(cmd); err != nil {
		return err
	}
	records, err := vectorStore.GetAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("Collection is empty.")
		return nil
	}

	shown := records
	if collectionLimit > 0 && len(shown) > collectionLimit {
		shown = shown[:collectionLimit]
	}
	for i := range shown {
		cmd.Printf("%s  %s\n", shown[i].ID, describeSource(shown[i].Metadata))
		cmd.Printf("    %s\n", snippet(shown[i].Content, 100))
	}
	if len(shown) < len(records) {
		cmd.Printf("\n%d of %d chunks shown.\n", len(shown), len(records))
	}
	return nil
}

func runCollectionGet(cmd *cobra.Command, args []string) error {
	if err := connect(cmd); err != nil {
		return err
	}
	records, err := vectorStore.GetByIDs(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	cmd.Println(string(data))
	if missing := len(args) - len(records); missing > 0 {
		cmd.PrintErrf("%d ids not found\n", missing)
	}
	return nil
}

func runCollectionDelete(cmd *cobra.Command, args []string) error {
	if err := connect(cmd); err != nil {
		return err
	}
	n, err := vectorStore.Delete(cmd.Context(), args, nil)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %d chunks.\n", n)
	return nil
}

func runCollectionReset(cmd *cobra.Command, _ []string) error {
	if err := connect(cmd); err != nil {
		return err
	}
	if err := vectorStore.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Printf("Collection %s reset.\n", vectorStore.Name())
	return nil
}

func runCollectionDrop(cmd *cobra.Command, _ []string) error {
	if err := connect(cmd); err != nil {
		return err
	}
	if err := vectorStore.DeleteCollection(cmd.Context()); err != nil {
		return fmt.Errorf("drop failed: %w", err)
	}
	cmd.Printf("Collection %s deleted.\n", vectorStore.Name())
	return nil
}
