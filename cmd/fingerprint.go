package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodaegwang/cirrus/internal/audit"
)

var fingerprintRaw bool

var fingerprintCmd = &cobra.Command{
	Use:     "fingerprint [token]",
	Aliases: []string{"fp"},
	Short:   `Calculate the fingerprint of a token`,
	Long: `Calculates the SHA256/Base64 fingerprint of a token. This is the value
stored in the audit log's 'token_fingerprint' field, so it can be used to
find the audit entry of a leaked token without handling the token itself.`,
	Example: `  # Calculate the fingerprint of a token
  cirrus fingerprint eyJhbGciOi...

  # Calculate the fingerprint of a token from stdin
  echo "eyJhbGciOi..." | cirrus fingerprint -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string

		if args[0] != "-" {
			token = args[0]
		} else {
			// read from stdin
			log.Debug().Msg("Reading token from stdin")

			data, err := os.ReadFile("/dev/stdin")
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			token = strings.TrimSpace(string(data))
		}

		if token == "" {
			return fmt.Errorf("token cannot be empty")
		}

		fp := audit.CalculateFingerprint(token)

		if fingerprintRaw {
			fmt.Println(fp)
		} else {
			fmt.Println("Fingerprint:", fp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().BoolVarP(&fingerprintRaw, "raw", "r", false,
		"Output only the fingerprint value without additional text")
}
