package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/mfenderov/hvlinks/internal/storage"
	"github.com/spf13/cobra"
)

var snapshotPage bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <prefix>",
	Short: "Show an archived scrape",
	Long: `Read back a page snapshot written by scrape when storage is enabled.

Examples:
  # Metadata for a snapshot
  hvlinks snapshot scrapes/example.com/2024-01-02T15-04-05-1a2b3c4d

  # The archived page itself
  hvlinks snapshot scrapes/example.com/2024-01-02T15-04-05-1a2b3c4d --page`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().BoolVar(&snapshotPage, "page", false, "Print the archived page instead of its metadata")
}

type snapshotReader interface {
	GetPage(ctx context.Context, prefix string) ([]byte, error)
	GetMetadata(ctx context.Context, prefix string) (*storage.SnapshotMetadata, error)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if !cfg.Storage.Enabled {
		return errors.New("snapshot storage is disabled (set storage.enabled)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archive, err := openArchive(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	return printSnapshot(ctx, cmd.OutOrStdout(), archive, args[0], snapshotPage)
}

func printSnapshot(ctx context.Context, out io.Writer, r snapshotReader, prefix string, page bool) error {
	if page {
		body, err := r.GetPage(ctx, prefix)
		if err != nil {
			return err
		}
		_, err = out.Write(body)
		return err
	}

	meta, err := r.GetMetadata(ctx, prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Source:    %s\n", meta.SourceURL)
	if meta.Title != "" {
		fmt.Fprintf(out, "Title:     %s\n", meta.Title)
	}
	fmt.Fprintf(out, "Scraped:   %s\n", meta.Timestamp)
	fmt.Fprintf(out, "Keywords:  %v\n", meta.Keywords)
	fmt.Fprintf(out, "Links:     %d\n", meta.LinksProcessed)
	for _, l := range meta.Links {
		fmt.Fprintf(out, "  %s\n", l)
	}
	return nil
}
