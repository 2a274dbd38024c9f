package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/zapdesk/zapdesk/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"  _____           ____            _\n" +
		" |__  /__ _ _ __ |  _ \\  ___  ___| | __\n" +
		"   / // _` | '_ \\| | | |/ _ \\/ __| |/ /\n" +
		"  / /| (_| | |_) | |_| |  __/\\__ \\   <\n" +
		" /____\\__,_| .__/|____/ \\___||___/_|\\_\\\n" +
		"           |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "zapdesk",
	Short: "ZapDesk - WhatsApp business auto-reply bot",
	Long:  color.CyanString(logo) + "\nAn auto-reply bot for business chats with human-like reply pacing.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(stoplistCmd)
	rootCmd.AddCommand(takeoverCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
