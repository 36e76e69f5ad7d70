package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/gatekeeper/internal/types"
	"github.com/andresmejia3/gatekeeper/internal/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List all enrolled identities",
	Annotations: map[string]string{annotationDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runList(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) error {
	identities, err := DB.List(ctx)
	if err != nil {
		utils.ShowError("Failed to list identities", err, "")
		return err
	}

	if len(identities) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}
	printIdentities(os.Stdout, identities)
	return nil
}

func printIdentities(out io.Writer, identities []types.Identity) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACCESS LEVEL\tCREATED")
	fmt.Fprintln(w, "--\t----\t------------\t-------")

	for _, id := range identities {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", id.ID, id.Name, id.AccessLevel, id.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
