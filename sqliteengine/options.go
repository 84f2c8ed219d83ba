package sqliteengine

import (
	"regexp"

	"github.com/ramonpiresone/biblioteca"
)

// The logging ports are shared with the rest of the catalog so one logger
// instance can serve components and engines alike.
type (
	// Logger receives SQL query logging at debug level and operational
	// information, warnings, and errors above it.
	Logger = biblioteca.Logger

	// ContextualLogger is the context-aware logging port. When both loggers
	// are configured the contextual one takes precedence.
	ContextualLogger = biblioteca.ContextualLogger
)

// tablePrefixPattern accepts prefixes that keep the combined table names
// legal SQLite identifiers without quoting.
var tablePrefixPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithTablePrefix prepends the given prefix to the three table names, so
// multiple catalogs can share one database file. The prefix must be a plain
// identifier fragment such as "catalog_".
func WithTablePrefix(prefix string) Option {
	return func(s *Store) error {
		if !tablePrefixPattern.MatchString(prefix) {
			return biblioteca.ErrInvalidTablePrefix
		}

		s.tablePrefix = prefix

		return nil
	}
}

// WithLogger sets the logger for the Store.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger

		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger

		return nil
	}
}
