package reposvc

import (
	"fmt"
	"time"

	"libshare/internal/config"
	"libshare/internal/libshare"
)

// NewRepoServiceFromConfig creates a RepoService implementation based on
// the repo service config type.
func NewRepoServiceFromConfig(cfg config.RepoServiceConfig) (libshare.RepoService, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryRepoService(libshare.UUIDGenerator{}), nil
	case "remote":
		if cfg.URL == "" {
			return nil, fmt.Errorf("remote repo service requires url to be set")
		}
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return NewRemoteRepoService(cfg.URL, cfg.Secret, timeout), nil
	default:
		return nil, fmt.Errorf("unknown repo service type: %s", cfg.Type)
	}
}
