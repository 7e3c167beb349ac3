package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// readBatch loads a YAML list of {link, op, quality, language} entries.
func readBatch(path string) ([]scheduler.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %v", err)
	}
	var entries []scheduler.Item
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing batch file: %v", err)
	}
	items := make([]scheduler.Item, 0, len(entries))
	for i, entry := range entries {
		if entry.URL == "" {
			output.PrintWarning(fmt.Sprintf("Entry %d has no link, skipping", i+1))
			continue
		}
		items = append(items, entry)
	}
	return items, nil
}

func newGetCmd() *cobra.Command {
	var item scheduler.Item
	var batchFile string

	cmd := &cobra.Command{
		Use:   "get [URL] [--quality FORMAT] [--language CODE] [--output DIR] | get --batch FILE",
		Short: "Download one video, or every entry of a YAML batch file",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var items []scheduler.Item
			switch {
			case batchFile != "" && len(args) > 0:
				output.PrintError("Cannot specify a URL and --batch together, choose one")
				os.Exit(1)
			case batchFile != "":
				var err error
				if items, err = readBatch(batchFile); err != nil {
					output.PrintError(err.Error())
					os.Exit(1)
				}
			case len(args) == 1:
				item.URL = args[0]
				items = []scheduler.Item{item}
			default:
				output.PrintError("No URL or batch file provided")
				os.Exit(1)
			}
			if len(items) == 0 {
				output.PrintError("No valid entries found in the batch file")
				os.Exit(1)
			}

			cfg := loadConfig()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, cfg)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			defaultDir := cfg.ResolvedDownloadDir()
			if err := os.MkdirAll(defaultDir, 0755); err != nil {
				output.PrintError(fmt.Sprintf("Cannot create %s: %v", defaultDir, err))
				os.Exit(1)
			}
			results := scheduler.Run(ctx, a.jobs, items, defaultDir)
			a.Close()
			for _, r := range results {
				if r.Err != nil {
					os.Exit(1)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&item.Quality, "quality", "q", "", "Format id or yt-dlp selector (default: best video + best audio)")
	cmd.Flags().StringVarP(&item.Language, "language", "l", "", "Audio language code")
	cmd.Flags().StringVarP(&item.OutputDir, "output", "o", "", "Destination directory (default: configured download dir)")
	cmd.Flags().StringVarP(&batchFile, "batch", "b", "", "YAML file listing entries with link, op, quality and language")
	return cmd
}
