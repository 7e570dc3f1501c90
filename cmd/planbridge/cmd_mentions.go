package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/planbridge/internal/fileindex"
	"github.com/user/planbridge/internal/mention"
)

func init() {
	rootCmd.AddCommand(mentionsCmd)
}

var mentionsCmd = &cobra.Command{
	Use:   "mentions <text>",
	Short: "Show the mention candidates offered at the end of text",
	Example: `  planbridge mentions "fix @src/"
  planbridge mentions "@prob"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		root := cfg.Workspace
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}
			root = wd
		}
		ix := fileindex.New(root, cfg.Index.MaxEntries)
		if err := ix.Scan(); err != nil {
			return fmt.Errorf("scan workspace: %w", err)
		}

		text := args[0]
		menu := mention.NewMenu(ix)
		menu.Update(text, len(text))
		state := menu.State()
		if !state.Active {
			fmt.Fprintln(cmd.OutOrStdout(), "no mention at cursor")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "query %q\n", state.Query)
		for i, c := range menu.Options() {
			marker := " "
			if i == state.SelectedIndex {
				marker = ">"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", marker, c.Kind, c.Value)
		}
		return w.Flush()
	},
}
