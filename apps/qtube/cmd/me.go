package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

var meCmd = &cobra.Command{
	Use:               "me",
	Short:             "Show the logged-in user",
	PersistentPreRunE: clientPreRun,
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("failed to create sdk: %v", err)
		}

		user, err := sdk.Me(cmd.Context())
		if err != nil {
			if sdk.HandleUnauthorized(err) {
				log.Fatalf("not logged in: run 'qtube auth login'")
			}
			exitIfSdkError(err)
		}

		fmt.Printf("ID:        %s\n", user.ID)
		fmt.Printf("Username:  %s\n", user.Username)
		fmt.Printf("Name:      %s\n", user.FullName)
		fmt.Printf("Email:     %s\n", user.Email)
		fmt.Printf("Avatar:    %s\n", user.Avatar)
		if user.CoverImage != "" {
			fmt.Printf("Cover:     %s\n", user.CoverImage)
		}
		fmt.Printf("Joined:    %s\n", user.CreatedAt.Format(time.RFC3339))
	},
}

func init() {
	rootCmd.AddCommand(meCmd)
}
