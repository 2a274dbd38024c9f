package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zapdesk/zapdesk/internal/store"
)

var (
	knowledgeCategory string
	knowledgeTags     []string
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the business knowledge base used for replies",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active knowledge entries",
	Run: func(cmd *cobra.Command, args []string) {
		st, _, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		entries, err := st.ListActiveKnowledge()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("Knowledge base is empty.")
			return
		}
		for _, e := range entries {
			fmt.Printf("#%d [%s] %s\n", e.ID, e.Category, e.Title)
		}
	},
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <title> <content>",
	Short: "Add a knowledge entry",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		st, _, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		tags, _ := json.Marshal(knowledgeTags)
		entry := &store.KnowledgeEntry{
			Title:    args[0],
			Content:  args[1],
			Category: knowledgeCategory,
			Tags:     string(tags),
			Active:   true,
		}
		if err := st.AddKnowledge(entry); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ Knowledge entry #%d added\n", entry.ID)
	},
}

func init() {
	knowledgeAddCmd.Flags().StringVar(&knowledgeCategory, "category", "", "Category label")
	knowledgeAddCmd.Flags().StringSliceVar(&knowledgeTags, "tags", nil, "Comma-separated tags")
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeAddCmd)
}
