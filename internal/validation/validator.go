// Package validation checks configured seed data before the server
// starts serving with it.
package validation

import (
	"fmt"
	"time"

	"github.com/goodaegwang/cirrus/internal/core"
)

// SeedClient is the YAML shape of a configured OAuth client. Lifetimes
// default when omitted.
type SeedClient struct {
	ID                   string        `yaml:"id"`
	Secret               string        `yaml:"secret"`
	RedirectURIs         []string      `yaml:"redirect_uris"`
	Grants               []string      `yaml:"grants"`
	AccessTokenLifetime  time.Duration `yaml:"access_token_lifetime"`
	RefreshTokenLifetime time.Duration `yaml:"refresh_token_lifetime"`
}

const (
	DefaultAccessTokenLifetime  = time.Hour
	DefaultRefreshTokenLifetime = 14 * 24 * time.Hour
)

var knownGrants = map[string]struct{}{
	core.GrantClientCredentials: {},
	core.GrantPassword:          {},
	core.GrantRefreshToken:      {},
}

// ValidateClients checks every configured client and fills in lifetime
// defaults. The returned slice replaces the input.
func ValidateClients(clients []SeedClient) ([]SeedClient, error) {
	seen := make(map[string]struct{})
	var valid []SeedClient

	for i, c := range clients {
		if c.ID == "" {
			return nil, fmt.Errorf("client #%d missing id", i)
		}
		if _, exists := seen[c.ID]; exists {
			return nil, fmt.Errorf("client id '%s' is not unique", c.ID)
		}
		seen[c.ID] = struct{}{}

		if c.Secret == "" {
			return nil, fmt.Errorf("client '%s' missing secret", c.ID)
		}
		if len(c.Grants) == 0 {
			return nil, fmt.Errorf("client '%s' has no grants", c.ID)
		}
		for _, g := range c.Grants {
			if _, known := knownGrants[g]; !known {
				return nil, fmt.Errorf("client '%s' references unknown grant '%s'", c.ID, g)
			}
		}

		if c.AccessTokenLifetime <= 0 {
			c.AccessTokenLifetime = DefaultAccessTokenLifetime
		}
		if c.RefreshTokenLifetime <= 0 {
			c.RefreshTokenLifetime = DefaultRefreshTokenLifetime
		}

		valid = append(valid, c)
	}
	return valid, nil
}

// Client converts a validated seed client into the domain shape.
func (c SeedClient) Client() core.Client {
	return core.Client{
		ID:                   c.ID,
		Secret:               c.Secret,
		RedirectURIs:         c.RedirectURIs,
		Grants:               c.Grants,
		AccessTokenLifetime:  c.AccessTokenLifetime,
		RefreshTokenLifetime: c.RefreshTokenLifetime,
	}
}
