package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/server"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newServeCmd() *cobra.Command {
	var host, downloadDir, cookiesFile, cookiesBrowser string
	var port int

	cmd := &cobra.Command{
		Use:   "serve [--port PORT] [--download-dir DIR]",
		Short: "Run the local HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("download-dir") {
				cfg.DownloadDir = downloadDir
			}
			if flags.Changed("cookies") {
				cfg.CookiesFile, cfg.CookiesFromBrowser = cookiesFile, ""
			}
			if flags.Changed("cookies-from-browser") {
				cfg.CookiesFromBrowser, cfg.CookiesFile = cookiesBrowser, ""
			}
			if err := cfg.Validate(); err != nil {
				output.PrintError(fmt.Sprintf("Invalid configuration: %v", err))
				os.Exit(1)
			}
			if !utils.GlobalDebugFlag {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, cfg)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			defer a.Close()
			a.jobs.StartJanitor(time.Minute)

			srv := server.New(a.prober, a.validator, a.jobs, extractor.NewDiagnostics(a.ytdlp, a.ffmpeg), server.Options{
				Addr:       cfg.Addr(),
				DefaultDir: cfg.ResolvedDownloadDir(),
				ProbeRate:  cfg.ProbeRate,
				ProbeBurst: cfg.ProbeBurst,
			})
			output.PrintHeader("vidgrab " + VidgrabVersion)
			output.PrintInfo(fmt.Sprintf("%s API on http://%s/api", output.StyleSymbols["arrow"], cfg.Addr()))
			output.PrintDetail(fmt.Sprintf("Downloads go to %s", cfg.ResolvedDownloadDir()))
			if err := srv.Run(ctx); err != nil {
				output.PrintError(fmt.Sprintf("Server stopped: %v", err))
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Loopback address to bind")
	cmd.Flags().IntVarP(&port, "port", "p", 5000, "Port to listen on")
	cmd.Flags().StringVarP(&downloadDir, "download-dir", "d", "", "Default download directory")
	cmd.Flags().StringVar(&cookiesFile, "cookies", "", "Netscape cookies.txt file to authorize requests")
	cmd.Flags().StringVar(&cookiesBrowser, "cookies-from-browser", "", "Browser cookie store, as BROWSER[+KEYRING][:PROFILE][::CONTAINER]")
	return cmd
}
