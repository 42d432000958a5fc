package traces

import "context"

// Repo is the trace store facade.
type Repo interface {
	Put(ctx context.Context, trace Trace) error
	Get(ctx context.Context, id string) (Trace, error)
	// ListByOwner returns traces newest first. An empty ownerID lists guest traces.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Trace, error)
}
