package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/gatekeeper/internal/eventlog"
	"github.com/andresmejia3/gatekeeper/internal/utils"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent access grants from the recognition log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runHistory(Cfg.Storage.EventLogPath, historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most this many of the latest entries (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(path string, limit int) error {
	entries, err := eventlog.New(path).ReadAll(time.Local)
	if err != nil {
		utils.ShowError("Failed to read recognition log", err, "")
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recognitions recorded yet.")
		return nil
	}
	printHistory(os.Stdout, latest(entries, limit))
	return nil
}

// latest returns the last n entries, or all of them when n <= 0.
func latest(entries []eventlog.Entry, n int) []eventlog.Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}

func printHistory(out io.Writer, entries []eventlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tNAME\tCONFIDENCE")
	fmt.Fprintln(w, "----\t----\t----------")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d%%\n", e.At.Format("2006-01-02 15:04:05"), e.Name, e.ConfidencePercent)
	}
	w.Flush()
}
