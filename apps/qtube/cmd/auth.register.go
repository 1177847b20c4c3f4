package cmd

import (
	"fmt"
	"log"

	"github.com/quatton/qtube/pkg/qsdk"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a qtube account",
	Long: `Create an account. The avatar image is required; the cover image is optional.

Example:
	qtube auth register --full-name Ana --email a@x.com --username ana --avatar ./me.png`,
	Run: runRegister,
}

func runRegister(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()
	req := qsdk.RegisterRequest{}
	req.FullName, _ = flags.GetString("full-name")
	req.Email, _ = flags.GetString("email")
	req.Username, _ = flags.GetString("username")
	req.AvatarPath, _ = flags.GetString("avatar")
	req.CoverImagePath, _ = flags.GetString("cover-image")

	password, err := passwordFlagOrPrompt(cmd)
	if err != nil {
		log.Fatalf("failed to read password: %v", err)
	}
	req.Password = password

	sdk, err := newSdk(cmd)
	if err != nil {
		log.Fatalf("failed to create sdk: %v", err)
	}

	user, err := sdk.Register(cmd.Context(), req)
	exitIfSdkError(err)

	fmt.Printf("Registered @%s (%s)\n", user.Username, user.ID)
	fmt.Println("Run 'qtube auth login' to start a session")
}

func init() {
	f := registerCmd.Flags()
	f.String("full-name", "", "display name")
	f.String("email", "", "account email")
	f.String("username", "", "account username")
	f.String("password", "", "account password (prompted when omitted)")
	f.String("avatar", "", "path to the avatar image")
	f.String("cover-image", "", "path to an optional cover image")

	authCmd.AddCommand(registerCmd)
}
