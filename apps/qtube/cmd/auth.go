package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your qtube session",
	Long: `Register an account and manage the session stored in the OS keyring.

Examples:
	qtube auth register --full-name Ana --email a@x.com --username ana --avatar me.png
	qtube auth login --username ana
	qtube auth refresh
	qtube auth logout`,
	PersistentPreRunE: clientPreRun,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

// readPassword is swapped out in tests.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func passwordFlagOrPrompt(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}
	return readPassword("Password: ")
}
