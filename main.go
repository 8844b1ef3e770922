package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vidflut",
		Short: "Stream videos to a Pixelflut canvas",
		Long: `vidflut plays a video on a Pixelflut server.

Frames are extracted with ffmpeg, delta-compressed so that only the
pixels that visibly changed are sent, and streamed at the video's
frame rate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	play := playCmd()
	rootCmd.AddCommand(
		play,
		cacheCmd(),
		versionCmd(),
	)
	// "vidflut <input>" is "vidflut play <input>".
	rootCmd.Args = play.Args
	rootCmd.RunE = play.RunE
	rootCmd.Flags().AddFlagSet(play.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// info prints a status line.
func info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", markerStyle.Render("::"), fmt.Sprintf(format, args...))
}
