package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/formats"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newInfoCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "info [URL] [--language CODE]",
		Short: "Show title, languages and downloadable formats of a video",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			defer a.Close()

			md, err := a.prober.Probe(ctx, args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("%s %s", utils.KindOf(err).Label(), utils.DetailOf(err)))
				os.Exit(1)
			}
			output.PrintHeader(md.Title)
			if md.Uploader != "" {
				output.PrintDetail("by " + md.Uploader)
			}
			if md.DurationSeconds != nil {
				output.PrintDetail("duration " + time.Duration(*md.DurationSeconds*float64(time.Second)).Round(time.Second).String())
			}
			if md.ThumbnailURL != "" {
				output.PrintDetail("thumbnail " + md.ThumbnailURL)
			}

			fmt.Println()
			output.PrintInfo("Languages")
			for _, track := range md.Languages {
				marker := " "
				if track.Code == md.DefaultLanguage {
					marker = output.StyleSymbols["arrow"]
				}
				fmt.Printf("  %s %s %s\n", marker, output.FInfo(fmt.Sprintf("%-8s", track.Code)), output.FDetail(track.Label))
			}

			code := language
			if code == "" {
				code = md.DefaultLanguage
			}
			filtered, err := formats.FormatsFor(md.Formats, code)
			if err != nil {
				output.PrintWarning(fmt.Sprintf("%s: %s", code, err))
				return
			}
			fmt.Println()
			output.PrintInfo(fmt.Sprintf("Formats (%s)", code))
			def := formats.DefaultFormat(filtered)
			for _, f := range filtered {
				marker := " "
				if f.ID == def {
					marker = output.StyleSymbols["arrow"]
				}
				fmt.Printf("  %s %s %s\n", marker, output.FInfo(fmt.Sprintf("%-12s", f.ID)), output.FDetail(f.Label))
			}
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Only list formats for this language code")
	return cmd
}
