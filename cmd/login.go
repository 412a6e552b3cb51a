package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goodaegwang/cirrus/internal/cliconfig"
	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/pkg/client"
)

var (
	loginClientID     string
	loginClientSecret string
	loginUsername     string
	loginPassword     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a Cirrus server",
	Long: `Performs a password grant against the server and saves the access token
locally so future authenticated requests (like audit logs) can use it.
Admin commands require a user whose scope includes "admin".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := viper.GetString(CirrusAddrKey)
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		u, err := url.Parse(normalizeServer(server))
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		cli := client.New(server)

		log.Info().Msgf("Issuing token from server %q...", u.Host)

		tok, correlationID, err := cli.IssueToken(cmd.Context(), client.TokenRequest{
			GrantType:    core.GrantPassword,
			ClientID:     loginClientID,
			ClientSecret: loginClientSecret,
			Username:     loginUsername,
			Password:     loginPassword,
		})
		if err != nil {
			return logError(err, correlationID, "failed to issue token")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = &cliconfig.CLIConfig{}
		}
		if cfg.Credentials == nil {
			cfg.Credentials = make(map[string]*cliconfig.Credential)
		}
		cfg.Credentials[u.Host] = &cliconfig.Credential{
			Token: tok.AccessToken,
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials for %s", bold(u.Host))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "Client ID")
	loginCmd.Flags().StringVar(&loginClientSecret, "client-secret", "", "Client secret")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Username to log in as")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password for the user")

	_ = loginCmd.MarkFlagRequired("client-id")
	_ = loginCmd.MarkFlagRequired("client-secret")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
}
