package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AyaScan/pkg/ayascan"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved readings, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		records, err := svc.History(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list results: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("📭 No results in database")
			return nil
		}

		fmt.Printf("📚 Found %d result(s):\n\n", len(records))
		printRecords(records)
		logger.Infof("Listed %d results", len(records))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find saved readings by letter or number",
	Long: `Search matches the letter ignoring case, or any part of the number.
An empty query lists everything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		svc, err := createService(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		records, err := svc.Search(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(records) == 0 {
			fmt.Printf("❌ No results matching %q\n", query)
			return nil
		}

		fmt.Printf("🔍 %d result(s) matching %q:\n\n", len(records), query)
		printRecords(records)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <letter> <number>",
	Short: "Save a reading by hand",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		letter, number, err := ayascan.NormalizeReading(args[0], args[1])
		if err != nil {
			return err
		}

		svc, err := createService(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		rec, err := svc.Save(cmd.Context(), letter, number)
		if err != nil {
			return err
		}

		fmt.Println("✅ Saved reading")
		fmt.Printf("   ID:     %d\n", rec.ID)
		fmt.Printf("   Badge:  %s-%s\n", rec.Letter, rec.Number)
		fmt.Printf("   Time:   %s\n", formatTimestamp(rec.Timestamp))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, searchCmd, saveCmd)
}

func printRecords(records []ayascan.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tBADGE\tSAVED")
	fmt.Fprintln(w, "--\t-----\t-----")
	for _, r := range records {
		id := "-"
		if r.ID != 0 {
			id = fmt.Sprint(r.ID)
		}
		fmt.Fprintf(w, "%s\t%s-%s\t%s\n", id, r.Letter, r.Number, formatTimestamp(r.Timestamp))
	}
	w.Flush()
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
