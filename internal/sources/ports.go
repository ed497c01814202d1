// Package sources defines where the initial dataset of a session comes from.
package sources

import (
	"context"

	"kpidash/internal/core"
)

// Ports for outbound adapters.
type (
	// DatasetSource yields the dataset a new session starts with.
	DatasetSource interface {
		Load(ctx context.Context) (core.Dataset, error)
		Name() string
	}

	// HealthChecker is implemented by sources backed by a remote system.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)
