package job

import (
	"voiceweave-server-go/internal/platform/config"
	"voiceweave-server-go/internal/platform/errors"
)

// NewStore builds the job store named by cfg.Store. An empty name
// selects the in-memory backend.
func NewStore(cfg config.JobConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemory(cfg.Retention), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, errors.New(errors.KindConfig, "job.new_store",
			"unknown job store: "+cfg.Store)
	}
}
