// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pdiddy/kb-engine/internal/export"
	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// --- quality and advise ---

var qualityCmd = &cobra.Command{
	Use:   "quality [id]",
	Short: "Score article structure and list quality issues",
	Long: `Quality scores one article, or audits every article (optionally in one
category) and stores the refreshed scores. Audits list the weakest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		var reports []types.QualityReport
		if len(args) == 1 {
			r, err := e.CheckQuality(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reports = []types.QualityReport{r}
		} else {
			reports, err = e.AuditQuality(cmd.Context(), category)
			if err != nil {
				return err
			}
		}
		if jsonOutput {
			return printJSON(reports)
		}
		for _, r := range reports {
			fmt.Printf("%3d  %s\n", r.OverallScore, r.ArticleID)
			for _, issue := range r.Issues {
				fmt.Printf("       %-16s %s\n", issue.Type, issue.Detail)
			}
		}
		return nil
	},
}

var adviseCmd = &cobra.Command{
	Use:   "advise [id]",
	Short: "Recommend which articles need updating",
	Long: `Advise combines age, quality, helpfulness, and deprecated terminology
into update recommendations with a priority and an effort estimate. Without
an id it lists every article that needs an update, most urgent first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		var recs []types.UpdateRecommendation
		if len(args) == 1 {
			r, err := e.CheckNeedsUpdate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			recs = []types.UpdateRecommendation{r}
		} else {
			recs, err = e.AdviseAll(cmd.Context(), category)
			if err != nil {
				return err
			}
		}
		if jsonOutput {
			return printJSON(recs)
		}
		if len(recs) == 0 {
			fmt.Println("No articles need updating.")
			return nil
		}
		for _, r := range recs {
			if !r.NeedsUpdate {
				fmt.Printf("%s is up to date\n", r.ArticleID)
				continue
			}
			fmt.Printf("[%s] %s %q (effort %s)\n", r.UpdatePriority, r.ArticleID, r.Title, r.EstimatedEffort)
			for _, s := range r.Suggestions {
				fmt.Printf("    - %s\n", s)
			}
		}
		return nil
	},
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Manage the support ticket and conversation log",
}

var interactionsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>...",
	Short: "Import tickets and conversations from YAML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var items []types.Interaction
		for _, path := range args {
			batch, err := store.ReadInteractionsYAML(path)
			if err != nil {
				return err
			}
			items = append(items, batch...)
		}

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := e.ImportInteractions(cmd.Context(), items)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d interactions\n", n)
		return nil
	},
}

// --- gaps, suggest, faq ---

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Find recurring questions the knowledge base does not answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		minFreq, _ := cmd.Flags().GetInt("min-frequency")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		detected, err := e.DetectGaps(ctx, days, minFreq)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(detected)
		}
		if len(detected) == 0 {
			fmt.Println("No knowledge gaps found.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-5s  %-12s  %s\n", "Priority", "Freq", "Category", "Topic")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
		for _, g := range detected {
			fmt.Fprintf(os.Stdout, "%8.1f  %5d  %-12s  %s\n",
				g.PriorityScore, g.Frequency, truncate(g.Category, 12), g.Topic)
		}
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest new articles from gaps and recurring ticket subjects",
	Long: `Suggest detects knowledge gaps, mines recurring ticket subjects, and
merges both into one deduplicated list of article suggestions, highest
priority first. The list is stored for export.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		minFreq, _ := cmd.Flags().GetInt("min-frequency")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		detected, err := e.DetectGaps(ctx, days, minFreq)
		if err != nil {
			return err
		}
		suggestions, err := e.Suggest(ctx, detected, days)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(suggestions)
		}
		if len(suggestions) == 0 {
			fmt.Println("No suggestions.")
			return nil
		}
		for _, s := range suggestions {
			fmt.Printf("%5.1f  %-14s  %s (%d)\n", s.Priority, s.Source, s.Title, s.Frequency)
		}
		return nil
	},
}

var faqCmd = &cobra.Command{
	Use:   "faq",
	Short: "Draft FAQ entries from frequently asked questions",
	Long: `FAQ clusters recent questions, picks a canonical phrasing, and drafts an
answer from the knowledge base. Candidates are stored as draft or
pending_review; nothing is ever published automatically. An interrupted
run keeps the candidates drafted so far.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		minFreq, _ := cmd.Flags().GetInt("min-frequency")
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		candidates, genErr := e.GenerateFAQ(ctx, days, minFreq, limit)
		if jsonOutput {
			if err := printJSON(candidates); err != nil {
				return err
			}
		} else {
			for _, c := range candidates {
				fmt.Printf("[%s] %s (%d)\n", c.Status, c.Question, c.Frequency)
			}
			fmt.Printf("\n%d FAQ candidates\n", len(candidates))
		}
		return genErr
	},
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export suggestions, FAQ candidates, recommendations, and gaps",
	Long: `Export writes the stored suggestions and FAQ candidates, fresh update
recommendations, and freshly detected gaps to <data_dir>/exports/ as YAML
or JSON for editors and downstream tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		days, _ := cmd.Flags().GetInt("days")
		minFreq, _ := cmd.Flags().GetInt("min-frequency")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		x := export.New(afero.NewOsFs(), e.Config().Store.DataDir)
		var errs []error
		report := func(path string, err error) {
			if err != nil {
				errs = append(errs, err)
				return
			}
			fmt.Printf("exported %s\n", path)
		}

		suggestions, err := e.Store().ListSuggestions(ctx)
		if err != nil {
			return err
		}
		report(x.Suggestions(suggestions, format))

		candidates, err := e.Store().ListFAQCandidates(ctx)
		if err != nil {
			return err
		}
		report(x.FAQ(candidates, format))

		recs, err := e.AdviseAll(ctx, "")
		if err != nil {
			return err
		}
		report(x.Recommendations(recs, format))

		detected, err := e.DetectGaps(ctx, days, minFreq)
		if err != nil {
			return err
		}
		report(x.Gaps(detected, format))

		return errors.Join(errs...)
	},
}

func init() {
	qualityCmd.Flags().String("category", "", "audit one category")
	qualityCmd.Flags().Bool("json", false, "output as JSON")
	adviseCmd.Flags().String("category", "", "advise on one category")
	adviseCmd.Flags().Bool("json", false, "output as JSON")

	for _, c := range []*cobra.Command{gapsCmd, suggestCmd, faqCmd, exportCmd} {
		c.Flags().Int("days", 30, "lookback window in days")
		c.Flags().Int("min-frequency", 5, "minimum cluster size")
	}
	for _, c := range []*cobra.Command{gapsCmd, suggestCmd, faqCmd} {
		c.Flags().Bool("json", false, "output as JSON")
	}
	faqCmd.Flags().Int("limit", 20, "maximum candidates (0 = no limit)")
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	interactionsCmd.AddCommand(interactionsImportCmd)

	rootCmd.AddCommand(qualityCmd)
	rootCmd.AddCommand(adviseCmd)
	rootCmd.AddCommand(interactionsCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(faqCmd)
	rootCmd.AddCommand(exportCmd)
}
