// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search and rank articles for a question",
	Long: `Search embeds the query, retrieves the most similar articles from the
vector store, and ranks them by relevance, quality, helpfulness, and
recency. When embedding fails the keyword index is used instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		results, err := e.Search(cmd.Context(), strings.Join(args, " "), category, limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-40s  %6s  %6s  %6s  %6s  %6s\n",
			"Rank", "ID", "Title", "Score", "Rel", "Qual", "Help", "Recent")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 108))
		for i, r := range results {
			fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-40s  %6.3f  %6.3f  %6.3f  %6.3f  %6.3f\n",
				i+1, truncate(r.Article.ID, 20), truncate(r.Article.Title, 40),
				r.RankScore, r.Relevance, r.Quality, r.Helpfulness, r.Recency)
		}
		fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <question>",
	Short: "Answer a question from the knowledge base with cited sources",
	Long: `Answer searches, ranks, and synthesizes an answer grounded in the top
articles. Every claim comes from a cited article; when nothing relevant is
found the answer says so with zero confidence. The request timeout from
synthesize.timeout applies.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ans := e.SearchAndSynthesize(cmd.Context(), strings.Join(args, " "), category)
		if jsonOutput {
			return printJSON(ans)
		}

		fmt.Println(ans.Answer)
		fmt.Println()
		if len(ans.Sources) > 0 {
			fmt.Printf("Sources: %s\n", strings.Join(ans.Sources, ", "))
		}
		fmt.Printf("Confidence: %.2f", ans.Confidence)
		if ans.Degraded {
			fmt.Print(" (degraded)")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	searchCmd.Flags().String("category", "", "restrict to one category")
	searchCmd.Flags().Int("limit", 0, "maximum results (0 = search.limit)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	answerCmd.Flags().String("category", "", "restrict to one category")
	answerCmd.Flags().Bool("json", false, "output the answer as JSON")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(answerCmd)
}
