package repohost

import (
	"fmt"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

// NewClient creates a host client based on the configuration.
func NewClient(cfg *config.Config) (Client, error) {
	switch cfg.Host.Type {
	case config.HostTypeGitHub:
		return NewGitHubClient(cfg.Host, cfg.Pipeline)
	case config.HostTypeLocal:
		return NewLocalClient(cfg.Host)
	default:
		return nil, fmt.Errorf("unsupported host type: %s", cfg.Host.Type)
	}
}
