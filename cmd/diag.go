package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/output"
)

func printComponent(c extractor.ComponentStatus) {
	if c.OK {
		output.PrintSuccess(fmt.Sprintf("%s %s %s", output.StyleSymbols["pass"], c.Name, c.Version))
		return
	}
	output.PrintError(fmt.Sprintf("%s %s: %s", output.StyleSymbols["fail"], c.Name, c.Error))
}

func newDiagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Check the external tools and credential source",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			defer a.Close()

			report := extractor.NewDiagnostics(a.ytdlp, a.ffmpeg).Report(ctx)
			output.PrintHeader("Tools")
			printComponent(report.Extractor)
			printComponent(report.Merger)
			if report.ExtractorTool.AgeDays != nil {
				output.PrintDetail(fmt.Sprintf("yt-dlp release is %d days old", *report.ExtractorTool.AgeDays))
			}
			if report.ExtractorTool.Warning != "" {
				output.PrintWarning(report.ExtractorTool.Warning)
			}
			output.PrintHeader("Credentials")
			if a.validator.Current() == nil {
				output.PrintDetail("no authorized session (" + a.validator.SourceName() + ")")
			} else {
				output.PrintSuccess(fmt.Sprintf("%s %s", output.StyleSymbols["pass"], a.validator.SourceName()))
			}
			output.PrintHeader("Paths")
			output.PrintDetail("yt-dlp  " + a.ytdlp.Path())
			output.PrintDetail("ffmpeg  " + a.ffmpeg.Path())
			output.PrintDetail("downloads  " + cfg.ResolvedDownloadDir())
		},
	}
}
