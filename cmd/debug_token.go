package cmd

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/goodaegwang/cirrus/internal/token"
)

var (
	debugTokenSecret  string
	debugTokenRefresh bool
)

var debugTokenCmd = &cobra.Command{
	Use:   "token [token]",
	Short: "Decode a token locally and dump its claims",
	Long: `Verifies a token against the given secret and dumps the decoded claims.
Useful to check what a server signed without calling it.`,
	Example: `  cirrus debug token --secret dev-secret eyJhbGciOi...`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec := token.New(debugTokenSecret, debugTokenSecret, nil)

		if debugTokenRefresh {
			claims, err := codec.DecodeRefresh(args[0])
			if err != nil {
				return fmt.Errorf("decoding refresh token: %w", err)
			}
			spew.Dump(claims)
			return nil
		}

		claims, err := codec.DecodeAccess(args[0])
		if err != nil {
			return fmt.Errorf("decoding access token: %w", err)
		}
		spew.Dump(claims)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugTokenCmd)

	debugTokenCmd.Flags().StringVar(&debugTokenSecret, "secret", "", "Secret used to verify the token signature")
	debugTokenCmd.Flags().BoolVar(&debugTokenRefresh, "refresh", false, "Decode as a refresh token")

	_ = debugTokenCmd.MarkFlagRequired("secret")
}
