package looker

import (
	"context"
	"fmt"
)

// Field describes one column of an Explore as reported by catalog
// metadata. Name is the dotted "view.field" identifier.
type Field struct {
	Name        string
	Type        string
	Label       string
	Alias       string
	Category    string
	Description string

	// Hidden is nil when the metadata did not report a hidden flag.
	// Inconclusive detection renders the field as visible.
	Hidden *bool
}

// hidden reports whether the field is definitely flagged hidden.
func (f *Field) hidden() bool {
	return f.Hidden != nil && *f.Hidden
}

// Result is a fully fetched query result. Columns is empty for statements
// that return no row-describing metadata; RowsAffected is negative when
// the driver did not report a count.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// Conn is one live session against the remote SQL endpoint. It is not
// safe for concurrent use; a Database owns at most one Conn and calls it
// sequentially.
type Conn interface {
	// Ping probes the session with a trivial query.
	Ping(ctx context.Context) error

	// Query executes a statement and fetches the full result set.
	Query(ctx context.Context, query string) (*Result, error)

	// Tables lists table/view names whose schema matches schemaPattern.
	Tables(ctx context.Context, schemaPattern string) ([]string, error)

	// Columns lists per-field metadata for one table.
	Columns(ctx context.Context, schema, table string) ([]Field, error)

	Close() error
}

// Connector opens Conns. Implementations carry endpoint and credential
// configuration.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectionError reports a failure to establish or re-establish a
// session with the remote endpoint.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("looker: failed to connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a failed statement execution and carries the exact
// text that was sent to the endpoint.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("looker: error executing query: %v\nQuery: %s", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }
