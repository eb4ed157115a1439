// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pdiddy/kb-engine/internal/convert"
	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/pkg/types"
)

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Manage knowledge-base articles",
	Long: `Articles stores, lists, and shows knowledge-base articles. Imported
articles are scored for quality and indexed for semantic search when their
text changed.`,
}

// --- import subcommand ---

var articlesImportCmd = &cobra.Command{
	Use:   "import <file.yaml|file.md|dir>...",
	Short: "Import articles from YAML or Markdown and index changed ones",
	Long: `Import reads YAML lists of articles (id, title, content, category) and
Markdown documents (directories are searched for .md files) and upserts
them into the Article Store. Articles whose title, content, or
category changed are re-chunked and re-embedded; unchanged articles are
skipped. One failing article does not stop the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runArticlesImport,
}

func runArticlesImport(cmd *cobra.Command, args []string) error {
	var (
		articles []types.Article
		markdown []string
	)
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() || convert.IsMarkdown(path) {
			markdown = append(markdown, path)
			continue
		}
		batch, err := store.ReadArticlesYAML(path)
		if err != nil {
			return err
		}
		articles = append(articles, batch...)
	}
	if len(markdown) > 0 {
		converted, result := convert.ConvertPaths(afero.NewOsFs(), markdown, os.Stdout)
		if result.HasFailures() {
			return fmt.Errorf("%d markdown document(s) failed conversion", result.Failed)
		}
		articles = append(articles, converted...)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	summary, err := e.ImportArticles(ctx, articles, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d article(s) failed", summary.Failed)
	}
	return nil
}

// --- list subcommand ---

var articlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored articles",
	RunE:  runArticlesList,
}

func runArticlesList(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	e, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	articles, err := e.Store().ListArticles(cmd.Context(), category)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(articles)
	}
	if len(articles) == 0 {
		fmt.Println("No articles.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-20s  %-40s  %-12s  %7s  %7s  %s\n",
		"ID", "Title", "Category", "Quality", "Helpful", "Updated")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 104))
	for _, a := range articles {
		fmt.Fprintf(os.Stdout, "%-20s  %-40s  %-12s  %7d  %6.0f%%  %s\n",
			truncate(a.ID, 20), truncate(a.Title, 40), truncate(a.Category, 12),
			a.QualityScore, a.HelpfulnessRatio*100, a.UpdatedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(os.Stdout, "\n%d articles\n", len(articles))
	return nil
}

// --- show subcommand ---

var articlesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one article with its counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := e.Store().GetArticle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

// --- index, rebuild, check ---

var indexCmd = &cobra.Command{
	Use:   "index [id]...",
	Short: "Chunk and embed articles into the vector store",
	Long: `Index regenerates the chunks of the named articles, or of every article
when no ids are given. Each article's old chunks are replaced atomically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.IndexAll(ctx, args, os.Stdout)
		if err != nil {
			return err
		}
		if summary.HasFailures() {
			return fmt.Errorf("%d article(s) failed indexing", summary.Failed)
		}
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Drop the vector store and rebuild it from the Article Store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.Rebuild(ctx, os.Stdout)
		if err != nil {
			return err
		}
		if summary.HasFailures() {
			return fmt.Errorf("%d article(s) failed indexing", summary.Failed)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the Article Store with the vector store",
	Long: `Check lists articles without chunks and chunks without articles. Run
rebuild to repair a divergent vector store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		c, err := e.CheckConsistency(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(c); err != nil {
				return err
			}
		} else {
			fmt.Printf("%d articles, %d indexed\n", c.Articles, c.Indexed)
			for _, id := range c.Unindexed {
				fmt.Printf("unindexed %s\n", id)
			}
			for _, id := range c.Orphaned {
				fmt.Printf("orphaned  %s\n", id)
			}
		}
		if !c.Consistent() {
			return fmt.Errorf("vector store diverges from articles: run 'kb-engine rebuild'")
		}
		return nil
	},
}

func init() {
	articlesListCmd.Flags().String("category", "", "filter by category")
	articlesListCmd.Flags().Bool("json", false, "output as JSON")
	checkCmd.Flags().Bool("json", false, "output as JSON")

	articlesCmd.AddCommand(articlesImportCmd)
	articlesCmd.AddCommand(articlesListCmd)
	articlesCmd.AddCommand(articlesShowCmd)

	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(checkCmd)
}
