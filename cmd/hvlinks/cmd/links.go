package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mfenderov/hvlinks/pkg/models"
	"github.com/spf13/cobra"
)

var (
	linksMinScore float64
	linksKeyword  string
	linksUseGPT   bool
	linksFormat   string
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Query stored links",
	Long: `List stored links with a relevance score at or above --min-score.

Examples:
  # Every stored link
  hvlinks links

  # Links that matched a keyword
  hvlinks links --min-score 1.0 --keyword budget

  # Re-score with the language model, JSON output for scripting
  hvlinks links --keyword budget --use-gpt --format json`,
	RunE: runLinks,
}

func init() {
	rootCmd.AddCommand(linksCmd)

	linksCmd.Flags().Float64Var(&linksMinScore, "min-score", 0, "Minimum relevance score")
	linksCmd.Flags().StringVar(&linksKeyword, "keyword", "", "Only links whose stored keywords contain this text")
	linksCmd.Flags().BoolVar(&linksUseGPT, "use-gpt", false, "Re-score each link with the language model")
	linksCmd.Flags().StringVar(&linksFormat, "format", "text", "Output format: text or json")
}

func runLinks(cmd *cobra.Command, args []string) error {
	if linksFormat != "text" && linksFormat != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", linksFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, GetConfig(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	links, err := a.pipeline.Query(ctx, models.LinkQuery{
		MinScore: linksMinScore,
		Keyword:  linksKeyword,
		UseGPT:   linksUseGPT,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if linksFormat == "json" {
		output, err := json.MarshalIndent(links, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(links) == 0 {
		fmt.Fprintln(out, "No links found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d links:\n\n", len(links))
	for _, l := range links {
		fmt.Fprintf(out, "%.2f  %-8s  %s", l.RelevanceScore, l.Type, l.URL)
		if len(l.Keywords) > 0 {
			fmt.Fprintf(out, "  [%s]", strings.Join(l.Keywords, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}
