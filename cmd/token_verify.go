package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Verify an access token against the server",
	Long: `Sends an access token to the verification endpoint and prints the
authenticated client and user behind it. Pass "-" to read the token from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		accessToken := args[0]
		if accessToken == "-" {
			log.Debug().Msg("Reading token from stdin")
			data, err := os.ReadFile("/dev/stdin")
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			accessToken = strings.TrimSpace(string(data))
		}
		if accessToken == "" {
			return fmt.Errorf("token cannot be empty")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		auth, correlation, err := cli.VerifyToken(cmd.Context(), accessToken)
		if err != nil {
			return logError(err, correlation, "token verification failed")
		}

		fmt.Println(bold("\n── Verified Token ──"))
		fmt.Printf("  %s: %s\n", faint("Client"), auth.Client.ID)
		fmt.Printf("  %s:   %s\n", faint("User"), auth.User.ID)
		if auth.User.ServiceID != nil {
			fmt.Printf("  %s: %s\n", faint("Service"), *auth.User.ServiceID)
		}
		if auth.User.Scope != "" {
			fmt.Printf("  %s:  %s\n", faint("Scope"), auth.User.Scope)
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenVerifyCmd)
}
