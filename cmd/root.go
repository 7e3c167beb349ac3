package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/utils"
)

var (
	debug      bool
	configPath string
	logFile    string
)

var VidgrabVersion = "dev"

var rootCmd = &cobra.Command{
	Use:               "vidgrab",
	Short:             "vidgrab is a local video download server built on yt-dlp and ffmpeg",
	Version:           VidgrabVersion,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				output.PrintError(fmt.Sprintf("Cannot open log file: %v", err))
				os.Exit(1)
			}
			utils.SetLogOutput(f)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newDiagCmd())
	rootCmd.AddCommand(newCleanCmd())
}
