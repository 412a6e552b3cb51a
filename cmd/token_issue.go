package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodaegwang/cirrus/internal/service"
	"github.com/goodaegwang/cirrus/pkg/client"
)

var (
	tokenIssueGrantType    string
	tokenIssueClientID     string
	tokenIssueClientSecret string
	tokenIssueUsername     string
	tokenIssuePassword     string
	tokenIssueRefreshToken string
	tokenIssueServiceID    string
	tokenIssueAppKey       string
	tokenIssueJSON         bool
)

// tokenIssueCmd represents the token issue command
var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Request a token pair from the server",
	Example: `  # client credentials grant
  cirrus token issue --client-id web-app --client-secret s3cret --grant-type client_credentials

  # password grant for a service user
  cirrus token issue --client-id web-app --client-secret s3cret \
      --grant-type password --service smart-home --username bob --password builder

  # app key exchange
  cirrus token issue --client-id web-app --client-secret s3cret --app-key device-key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		var (
			tok         *service.Token
			correlation string
		)
		if tokenIssueAppKey != "" {
			log.Info().Msg("Exchanging app key...")
			tok, correlation, err = cli.ExchangeAppKey(cmd.Context(),
				tokenIssueClientID, tokenIssueClientSecret, tokenIssueAppKey)
		} else {
			log.Info().Str("grant_type", tokenIssueGrantType).Msg("Requesting token...")
			tok, correlation, err = cli.IssueToken(cmd.Context(), client.TokenRequest{
				GrantType:    tokenIssueGrantType,
				ClientID:     tokenIssueClientID,
				ClientSecret: tokenIssueClientSecret,
				Username:     tokenIssueUsername,
				Password:     tokenIssuePassword,
				RefreshToken: tokenIssueRefreshToken,
				ServiceID:    tokenIssueServiceID,
			})
		}
		if err != nil {
			return logError(err, correlation, "failed to issue token")
		}

		if tokenIssueJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tok)
		}

		fmt.Println(bold("\n── Token ──"))
		fmt.Printf("  %s: %s\n", faint("Access Token"), tok.AccessToken)
		fmt.Printf("  %s:      %s\n", faint("Expires"),
			tok.AccessTokenExpiresAt.Local().Format(time.RFC1123))
		if tok.RefreshToken != "" {
			fmt.Printf("  %s: %s\n", faint("Refresh Token"), tok.RefreshToken)
		}
		fmt.Printf("  %s:         %s\n", faint("User"), tok.User.ID)
		if tok.User.ServiceID != nil {
			fmt.Printf("  %s:      %s\n", faint("Service"), *tok.User.ServiceID)
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)

	tokenIssueCmd.Flags().StringVar(&tokenIssueGrantType, "grant-type", "client_credentials", "Grant type to request")
	tokenIssueCmd.Flags().StringVar(&tokenIssueClientID, "client-id", "", "Client ID")
	tokenIssueCmd.Flags().StringVar(&tokenIssueClientSecret, "client-secret", "", "Client secret")
	tokenIssueCmd.Flags().StringVar(&tokenIssueUsername, "username", "", "Username (password grant)")
	tokenIssueCmd.Flags().StringVar(&tokenIssuePassword, "password", "", "Password (password grant)")
	tokenIssueCmd.Flags().StringVar(&tokenIssueRefreshToken, "refresh-token", "", "Refresh token (refresh_token grant)")
	tokenIssueCmd.Flags().StringVar(&tokenIssueServiceID, "service", "", "Service ID for tenant-scoped issuance")
	tokenIssueCmd.Flags().StringVar(&tokenIssueAppKey, "app-key", "", "Exchange an app key instead of a grant")
	tokenIssueCmd.Flags().BoolVar(&tokenIssueJSON, "json", false, "Print the raw JSON response")

	_ = tokenIssueCmd.MarkFlagRequired("client-id")
	_ = tokenIssueCmd.MarkFlagRequired("client-secret")
}
