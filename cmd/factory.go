package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/goodaegwang/cirrus/internal/cliconfig"
	"github.com/goodaegwang/cirrus/pkg/client"
)

// Factory wires command implementations to their dependencies. Commands
// reach the server through GetClient; the address and session token are
// resolved from flags, the user config and the environment.
type Factory struct{}

var f = &Factory{}

// RemoteAddr returns the configured server address, empty when none is
// set anywhere.
func (f *Factory) RemoteAddr() string {
	return viper.GetString(CirrusAddrKey)
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr()
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set CIRRUS_ADDR)")
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		if cred, err := cfg.GetCredential(normalizeServer(server)); err == nil { // token prio 1: saved credential
			token = cred.Token
		} else if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
			return nil, err
		}
	}

	if envToken := os.Getenv("CIRRUS_TOKEN"); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&cfgFile, "config", "f", "config.yaml", "The Cirrus server config file to use")
}
