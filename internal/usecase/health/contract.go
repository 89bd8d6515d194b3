package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker checks document text extraction readiness.
type IndexChecker interface {
	IndexHealth(ctx context.Context) error
}
