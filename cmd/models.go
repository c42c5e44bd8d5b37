package cmd

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kartoza/attention-is-key/internal/attention"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available for analysis",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"ID", "Name", "Type", "Description"})
		table.SetAutoWrapText(false)
		for _, m := range attention.Models() {
			id := m.ID
			if id == attention.DefaultModelID {
				id += " *"
			}
			table.Append([]string{id, m.DisplayName, string(m.Architecture), m.Description})
		}
		table.Render()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
