package biblioteca

import "context"

// ConsistencyLevel defines the consistency requirement for catalog reads.
type ConsistencyLevel int

const (
	// StrongConsistency requires reads from the primary database so callers
	// see their own writes immediately. This is the default: the Coordinator
	// and Registry run read-check-write patterns that must observe current
	// state.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from replica databases, trading
	// freshness for reduced primary load. Suitable for catalog browsing,
	// search, and favorites listings that tolerate slightly stale data.
	EventualConsistency
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// consistencyLevelKey is the context key carrying the consistency preference.
const consistencyLevelKey contextKey = "biblioteca.consistency_level"

// WithStrongConsistency returns a context that routes reads to the primary
// database. Transactions always use the primary regardless of this setting.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows reads to be served
// from a replica database when the engine has one configured.
//
// Example usage:
//
//	ctx = biblioteca.WithEventualConsistency(ctx)
//	books, err := search.Find(ctx, query)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyLevelKey, EventualConsistency)
}

// ConsistencyFromContext extracts the consistency level from the context,
// defaulting to StrongConsistency when none is set.
func ConsistencyFromContext(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(consistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a readable representation for logging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
