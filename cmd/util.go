package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/goodaegwang/cirrus/internal/cliconfig"
	"github.com/goodaegwang/cirrus/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()

	greenCheck = color.GreenString("✓")
	redCross   = color.RedString("✗")
)

// BeQuietError signals that the failure was already reported and the
// root command should not log it again.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "exiting"
}

func getClient() (*client.Client, error) {
	// we need the user to provide some server address first
	server := viper.GetString(CirrusAddrKey)
	if server == "" {
		return nil, fmt.Errorf("server address not configured, provide via --server or env")
	}

	var sessionToken string

	cfg, err := cliconfig.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return client.New(server), nil
	}

	credential, err := cfg.GetCredential(normalizeServer(server))
	if err != nil {
		if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
			return nil, err
		}
	} else {
		sessionToken = credential.Token
	}

	return client.New(server, client.WithAuthToken(sessionToken)), nil
}

// normalizeServer makes bare host:port addresses parseable as URLs so
// credential lookup and storage agree on the key.
func normalizeServer(server string) string {
	if !strings.Contains(server, "://") {
		return "http://" + server
	}
	return server
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func applyTableFormat(t table.Writer) {
	s := table.StyleRounded
	s.Format.Header = text.FormatDefault
	t.SetStyle(s)
}

func logError(err error, correlationID, short string) error {
	if correlationID != "" {
		log.Error().Msgf("%s %s (correlation ID: %s)", redCross, short, correlationID)
	} else {
		log.Error().Msgf("%s %s", redCross, short)
	}
	log.Error().Msgf("error: %v", err)
	return BeQuietError{}
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s "+format, append([]any{greenCheck}, args...)...)
}
