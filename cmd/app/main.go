// Command screenassist answers questions about what is on screen.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:   "screenassist",
		Short: "Screen-reading AI assistant",
		Long: `Capture the screen, send it to a chat-completions model and show the answer.

Runs hotkey-driven by default:
  scan    capture and ask (default <ctrl>+<shift>+s)
  toggle  show or hide the answer output (default <ctrl>+<shift>+h)
  region  mark a capture corner at the mouse (default <ctrl>+<shift>+r)
  quit    exit (default <ctrl>+<shift>+q)`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(captureCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
