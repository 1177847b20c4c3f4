package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/quatton/qtube/pkg/qauth"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a qtube server",
	Long: `Log in with a username or email and store the issued tokens in the keyring.
The password is prompted for when --password is not given.

Examples:
	qtube auth login --username ana
	qtube auth login --email a@x.com --password secret1`,
	Run: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) {
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	if username == "" && email == "" {
		log.Fatalf("either --username or --email is required")
	}

	password, err := passwordFlagOrPrompt(cmd)
	if err != nil {
		log.Fatalf("failed to read password: %v", err)
	}

	sdk, err := newSdk(cmd)
	if err != nil {
		log.Fatalf("failed to create sdk: %v", err)
	}

	user, err := sdk.Login(cmd.Context(), username, email, password)
	exitIfSdkError(err)

	fmt.Printf("Logged in as: %s (@%s)\n", user.FullName, user.Username)
	if claims, err := qauth.FromToken(sdk.Token); err == nil && claims.Exp > 0 {
		fmt.Printf("Access token expires: %s\n", time.Unix(claims.Exp, 0).Format(time.RFC3339))
	}
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("failed to create sdk: %v", err)
		}
		if err := sdk.Logout(cmd.Context()); err != nil {
			if sdk.HandleUnauthorized(err) {
				fmt.Println("Session already ended; local credentials removed")
				return
			}
			exitIfSdkError(err)
		}
		fmt.Println("Logged out")
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rotate the stored session tokens",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("failed to create sdk: %v", err)
		}
		if err := sdk.Refresh(cmd.Context()); err != nil {
			sdk.HandleUnauthorized(err)
			exitIfSdkError(err)
		}
		fmt.Println("Tokens refreshed")
	},
}

func init() {
	loginCmd.Flags().String("username", "", "account username")
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password (prompted when omitted)")

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(refreshCmd)
}
