package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var auditTokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List currently active refresh tokens",
	Long: `Retrieves a list of all currently active (non-expired) refresh tokens issued
by the server, with the owning user, client and expiration time.

This command requires an authenticated session (via 'cirrus login') with admin privileges.`,
	Example: `  cirrus audit tokens`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching active tokens...")
		tokens, correlation, err := cli.ListActiveTokens(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to retrieve active tokens")
		}

		if len(tokens) == 0 {
			log.Info().Msg("No active tokens found")
			return nil
		}
		log.Debug().Msgf("Retrieved %d active token(s)", len(tokens))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Issued", "Expires", "User", "Service", "Client",
		})

		for _, tok := range tokens {
			timeLeft := time.Until(tok.ExpiresAt).Round(time.Minute)

			service := tok.ServiceID
			if service == "" {
				service = faint("(platform)")
			}
			t.AppendRow(table.Row{
				tok.IssuedAt.Format(time.RFC3339),
				fmt.Sprintf("%s (%s)", tok.ExpiresAt.Format("2006-01-02 15:04"), faint(timeLeft.String())),
				color.New(color.Bold).Sprint(truncate(tok.UserID, 35)),
				service,
				tok.ClientID,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditTokensCmd)
}
