package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [dir]",
		Short: "Remove working directories left behind by interrupted downloads",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var dir string
			if len(args) == 1 {
				dir = utils.ExpandHome(args[0])
			} else {
				dir = loadConfig().ResolvedDownloadDir()
			}
			n, err := utils.CleanFunction(dir)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning %s: %v", dir, err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("%s removed %d working director(ies) in %s", output.StyleSymbols["pass"], n, dir))
		},
	}
}
