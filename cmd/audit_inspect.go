package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodaegwang/cirrus/pkg/client"
)

var auditInspectCmd = &cobra.Command{
	Use:     "inspect CORRELATION-ID",
	Short:   "Show full details of a specific audit log entry",
	Example: `  cirrus audit inspect d0p3kav2l4vc72s9e0og`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		correlationID := args[0]
		if correlationID == "" {
			return fmt.Errorf("correlation ID cannot be empty")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving entry with correlation ID '%s'...", correlationID)
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         1,
			CorrelationID: correlationID,
		})
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit log entry")
		}
		if len(audits) == 0 {
			log.Warn().Str("correlation_id", correlationID).Msg("no audit log entries found")
			return nil
		}

		entry := audits[0]

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		printKV := func(key string, val any) {
			fmt.Printf("  %-26s %v\n", faint(key)+":", val)
		}

		status := green("granted")
		if !entry.Granted {
			status = red("denied")
		}

		fmt.Println(bold("\n── Audit Entry ──"))
		printKV("Correlation ID", correlationID)
		printKV("Time", entry.Time.Local().Format(time.RFC1123))
		printKV("Action", entry.Action)
		printKV("Decision", status)

		fmt.Println(bold("\n── Identity ──"))
		if entry.UserID != "" {
			printKV("User", entry.UserID)
			if entry.ServiceID != "" {
				printKV("Service", entry.ServiceID)
			} else {
				printKV("Service", faint("(platform user)"))
			}
		} else {
			fmt.Printf("  %s\n", faint("(no resolved user)"))
		}
		printKV("Client", entry.ClientID)

		fmt.Println(bold("\n── Request ──"))
		if entry.GrantType != "" {
			printKV("Grant Type", entry.GrantType)
		} else {
			printKV("Grant Type", faint("(none)"))
		}
		if entry.Error != "" {
			printKV("Error Message", red(entry.Error))
		}
		if entry.Stacktrace != "" {
			printKV("Stacktrace", red(entry.Stacktrace))
		}

		fmt.Println(bold("\n── Output ──"))
		if entry.TokenFingerprint != "" {
			printKV("Token Fingerprint", entry.TokenFingerprint)
		} else {
			printKV("Token Fingerprint", faint("(no token issued)"))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditInspectCmd)
}
