package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/gatekeeper/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB      bool
	resetSamples bool
	resetLog     bool
	resetYes     bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (identities, face samples and model, recognition log)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetSamples && !resetLog {
			resetDB = true
			resetSamples = true
			resetLog = true
		}

		reader := bufio.NewReader(os.Stdin)
		ask := func(prompt string) bool {
			return resetYes || confirm(reader, os.Stdout, prompt)
		}

		if resetDB && ask("⚠️  Are you sure you want to DROP all enrolled identities?") {
			fmt.Println("🗑️  Clearing Database...")
			if err := connectStore(cmd.Context(), Cfg); err != nil {
				utils.ShowError("Failed to connect to database", err, "")
				return err
			}
			if err := DB.Reset(cmd.Context()); err != nil {
				utils.ShowError("Failed to reset database", err, "")
				return err
			}
		}

		if resetSamples && ask("⚠️  Are you sure you want to delete all face samples and the trained model?") {
			fmt.Println("🗑️  Clearing Face Samples and Model...")
			removePath(Cfg.Storage.DatasetDir)
			removePath(Cfg.Storage.ModelPath)
		}

		if resetLog && ask("⚠️  Are you sure you want to delete the recognition log?") {
			fmt.Println("🗑️  Clearing Recognition Log...")
			removePath(Cfg.Storage.EventLogPath)
		}

		fmt.Println("✨ System Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear enrolled identities from PostgreSQL")
	resetCmd.Flags().BoolVar(&resetSamples, "samples", false, "Clear captured face samples and the trained model")
	resetCmd.Flags().BoolVar(&resetLog, "log", false, "Clear the recognition log")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removePath(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
