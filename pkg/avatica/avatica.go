// Package avatica provides the production looker.Connector for Looker's
// Open SQL Interface, which is an Apache Calcite Avatica endpoint. Query
// execution goes through database/sql with the calcite-avatica-go driver;
// catalog metadata goes through a small Avatica JSON client, since the
// driver has no DatabaseMetaData equivalent.
package avatica

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"

	_ "github.com/apache/calcite-avatica-go/v5"
	"github.com/semanticbi/looker-sql-agent/pkg/logging"
	"github.com/semanticbi/looker-sql-agent/pkg/looker"
)

// Connector opens Avatica-backed connections. The configured instance URL
// must point at the Avatica endpoint of the Looker instance.
type Connector struct {
	cfg        looker.Config
	logger     *logging.Logger
	httpClient *http.Client
}

// NewConnector returns a Connector for cfg. A nil logger selects the
// package-level one.
func NewConnector(cfg looker.Config, logger *logging.Logger) *Connector {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Connector{cfg: cfg.WithDefaults(), logger: logger}
}

// Connect opens the database/sql handle and registers an Avatica
// connection for metadata calls.
func (c *Connector) Connect(ctx context.Context) (looker.Conn, error) {
	dsn := DSN(c.cfg)
	c.logger.Debug("opening Avatica connection", "url", c.cfg.InstanceURL, "driver", c.cfg.DriverName)

	db, err := sql.Open(c.cfg.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s driver: %w", c.cfg.DriverName, err)
	}

	meta := newMetaClient(c.cfg.InstanceURL, c.cfg.ClientID, c.cfg.ClientSecret, c.httpClient, c.logger)
	if err := meta.open(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening metadata connection: %w", err)
	}

	return &conn{db: db, meta: meta, logger: c.logger}, nil
}

// DSN builds the calcite-avatica-go connection string for cfg: the
// endpoint URL followed by basic-auth credentials, the model as the
// default schema, and any extra connection properties.
func DSN(cfg looker.Config) string {
	params := url.Values{}
	params.Set("authentication", "BASIC")
	params.Set("avaticaUser", cfg.ClientID)
	params.Set("avaticaPassword", cfg.ClientSecret)
	params.Set("schema", cfg.ModelName)
	for k, v := range cfg.ConnParams {
		params.Set(k, v)
	}
	return cfg.InstanceURL + "?" + params.Encode()
}

// conn is one live Avatica session.
type conn struct {
	db     *sql.DB
	meta   *metaClient
	logger *logging.Logger
}

// Ping probes the session with a trivial query.
func (c *conn) Ping(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	return rows.Close()
}

// Query executes a statement and fetches the full result set, coercing
// []byte cells to string so downstream formatting renders text instead of
// byte slices. RowsAffected is never reported on this path.
func (c *conn) Query(ctx context.Context, query string) (*looker.Result, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &looker.Result{Columns: cols, RowsAffected: -1}
	if len(cols) == 0 {
		return result, rows.Err()
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *conn) Tables(ctx context.Context, schemaPattern string) ([]string, error) {
	return c.meta.Tables(ctx, schemaPattern)
}

func (c *conn) Columns(ctx context.Context, schema, table string) ([]looker.Field, error) {
	return c.meta.Columns(ctx, schema, table)
}

// Close releases both the metadata connection and the driver handle. The
// metadata close is best effort; the driver close error wins.
func (c *conn) Close() error {
	if c.meta != nil {
		if err := c.meta.close(context.Background()); err != nil {
			c.logger.Debug("error closing Avatica metadata connection", "error", err)
		}
	}
	return c.db.Close()
}
