package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mfenderov/hvlinks/pkg/models"
	"github.com/spf13/cobra"
)

var (
	scrapeURL      string
	scrapeKeywords []string
	scrapeUseGPT   bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Score and store the links of one page",
	Long: `Fetch a page, score every link on it against the keywords, and store the results.

A link scores 1.0 when any keyword occurs in its href (ignoring case) and 0.3
otherwise. Links ending in .pdf, .xls, .xlsx, .doc or .docx are stored as documents.

Examples:
  # Score the links of a page against two keywords
  hvlinks scrape --url https://city.gov/finance --keyword budget --keyword report

  # Comma-separated keywords work too
  hvlinks scrape --url https://city.gov/finance -k budget,report`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeURL, "url", "", "URL of the page to scrape")
	scrapeCmd.Flags().StringSliceVarP(&scrapeKeywords, "keyword", "k", nil, "keyword to match against links (repeatable)")
	scrapeCmd.Flags().BoolVar(&scrapeUseGPT, "use-gpt", false, "reserved; scraping always scores lexically")
	scrapeCmd.MarkFlagRequired("url")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, GetConfig(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Debug("scrape command starting", "url", scrapeURL, "keywords", scrapeKeywords)

	result, err := a.pipeline.Scrape(ctx, models.ScrapeRequest{
		URL:      scrapeURL,
		Keywords: scrapeKeywords,
		UseGPT:   scrapeUseGPT,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scraping completed: %d links processed\n", result.LinksProcessed)
	if result.Snapshot != "" {
		fmt.Fprintf(out, "Snapshot: %s\n", result.Snapshot)
	}
	return nil
}
