package looker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/semanticbi/looker-sql-agent/pkg/logging"
)

// Dialect is the SQL dialect spoken by Looker's Open SQL Interface.
const Dialect = "calcite"

// noExploresMessage is returned by TableInfo when nothing is renderable.
const noExploresMessage = "No Explores found or specified Explores are not accessible."

// Database exposes a Looker semantic layer (model, Explores, view.field
// columns) through a SQL-database shaped interface suitable for an LLM
// agent. It owns at most one live Conn and re-establishes it lazily when
// a health probe fails. Not safe for concurrent use.
type Database struct {
	cfg       Config
	connector Connector
	conn      Conn
	logger    *logging.Logger
}

// NewDatabase validates cfg, applies defaults and eagerly opens the first
// connection. A nil logger selects the package-level one.
func NewDatabase(ctx context.Context, connector Connector, cfg Config, logger *logging.Logger) (*Database, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	db := &Database{cfg: cfg, connector: connector, logger: logger}
	if _, err := db.ensureConnected(ctx); err != nil {
		logger.Error("failed to connect to Looker SQL Interface", "url", cfg.InstanceURL, "error", err)
		return nil, err
	}
	logger.Info("connected to Looker SQL Interface", "url", cfg.InstanceURL, "model", cfg.ModelName)
	return db, nil
}

// Dialect returns the SQL dialect name for prompt construction.
func (d *Database) Dialect() string { return Dialect }

// Config returns the normalized configuration in use.
func (d *Database) Config() Config { return d.cfg }

// ensureConnected returns a live Conn, probing any existing handle first.
// A dead handle is discarded and replaced with a single reconnect attempt.
func (d *Database) ensureConnected(ctx context.Context) (Conn, error) {
	if d.conn != nil {
		if err := d.conn.Ping(ctx); err == nil {
			return d.conn, nil
		} else {
			d.logger.Warn("existing Looker connection test failed, reconnecting", "error", err)
			if cerr := d.conn.Close(); cerr != nil {
				d.logger.Debug("error closing dead connection", "error", cerr)
			}
			d.conn = nil
		}
	}

	conn, err := d.connector.Connect(ctx)
	if err != nil {
		return nil, &ConnectionError{URL: d.cfg.InstanceURL, Err: err}
	}
	d.conn = conn
	return conn, nil
}

// Close releases the current connection if any. Idempotent; close
// failures are logged, never propagated.
func (d *Database) Close() {
	if d.conn == nil {
		return
	}
	if err := d.conn.Close(); err != nil {
		d.logger.Error("error closing Looker connection", "url", d.cfg.InstanceURL, "error", err)
	} else {
		d.logger.Info("Looker connection closed", "url", d.cfg.InstanceURL)
	}
	d.conn = nil
}

// UsableTableNames lists the Explores under the configured model,
// intersected with the include list when one is configured, in
// lexicographic order. Metadata failures degrade to an empty list with a
// warning; only a connection failure is returned as an error.
func (d *Database) UsableTableNames(ctx context.Context) ([]string, error) {
	conn, err := d.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	found, err := conn.Tables(ctx, d.cfg.ModelName)
	if err != nil {
		d.logger.Warn("failed to list Explores for model", "model", d.cfg.ModelName, "error", err)
		return []string{}, nil
	}

	distinct := make(map[string]struct{}, len(found))
	for _, name := range found {
		if name != "" {
			distinct[name] = struct{}{}
		}
	}

	include := d.cfg.includeSet()
	names := make([]string, 0, len(distinct))
	for name := range distinct {
		if include != nil {
			if _, ok := include[name]; !ok {
				continue
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		d.logger.Warn("no usable Explores found for model", "model", d.cfg.ModelName)
	}
	return names, nil
}

// TableInfo renders a synthetic CREATE TABLE block per Explore, with
// field metadata comments and optional sample rows. A nil tableNames
// renders every usable Explore; requested names that are not usable are
// dropped with a warning. Each Explore degrades independently: a metadata
// or sample-row failure never aborts the rest of the listing.
func (d *Database) TableInfo(ctx context.Context, tableNames []string) (string, error) {
	conn, err := d.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	usable, err := d.UsableTableNames(ctx)
	if err != nil {
		return "", err
	}

	var targets []string
	if tableNames == nil {
		targets = usable
	} else {
		usableSet := make(map[string]struct{}, len(usable))
		for _, name := range usable {
			usableSet[name] = struct{}{}
		}
		for _, name := range tableNames {
			if _, ok := usableSet[name]; ok {
				targets = append(targets, name)
			}
		}
		if len(targets) != len(tableNames) {
			d.logger.Warn("requested Explores not found or not usable",
				"requested", strings.Join(tableNames, ", "),
				"usable", strings.Join(targets, ", "))
		}
	}

	if len(targets) == 0 {
		return noExploresMessage, nil
	}

	blocks := make([]string, 0, len(targets))
	for _, explore := range targets {
		blocks = append(blocks, d.renderTable(ctx, conn, explore))
	}
	return strings.Join(blocks, "\n"), nil
}

// renderTable builds the schema block for one Explore.
func (d *Database) renderTable(ctx context.Context, conn Conn, explore string) string {
	parts := []string{fmt.Sprintf("CREATE TABLE `%s`.`%s` (", d.cfg.ModelName, explore)}

	fields, err := conn.Columns(ctx, d.cfg.ModelName, explore)
	if err != nil {
		d.logger.Error("error retrieving columns metadata for Explore", "explore", explore, "error", err)
		parts = append(parts, "    -- Error retrieving full column details --", ");")
		return strings.Join(parts, "\n")
	}

	visible := visibleFields(fields)
	if len(visible) == 0 {
		d.logger.Warn("no column metadata found for Explore", "explore", explore)
		parts = append(parts, "    -- No column definitions retrieved --", ");")
		return strings.Join(parts, "\n")
	}

	lines := make([]string, 0, len(visible))
	for i := range visible {
		lines = append(lines, fieldLine(&visible[i]))
	}
	parts = append(parts, strings.Join(lines, ",\n"), ");")

	if d.cfg.SampleRows > 0 {
		parts = append(parts, d.sampleRowsBlock(ctx, conn, explore, visible))
	}
	return strings.Join(parts, "\n")
}

// sampleRowsBlock fetches up to SampleRows example rows over the first
// five visible fields and renders them as a comment block. Failures are
// inlined as a comment, never propagated.
func (d *Database) sampleRowsBlock(ctx context.Context, conn Conn, explore string, visible []Field) string {
	limit := len(visible)
	if limit > 5 {
		limit = 5
	}
	names := make([]string, 0, limit)
	for _, f := range visible[:limit] {
		names = append(names, f.Name)
	}
	selected := backtickList(names)

	query := fmt.Sprintf("SELECT %s FROM `%s`.`%s` LIMIT %d",
		selected, d.cfg.ModelName, explore, d.cfg.SampleRows)
	d.logger.Debug("fetching sample rows", "query", query)

	res, err := conn.Query(ctx, query)
	if err != nil {
		d.logger.Error("error fetching sample rows for Explore", "explore", explore, "query", query, "error", err)
		return fmt.Sprintf("\n/* Could not fetch sample rows for `%s`.`%s`. */", d.cfg.ModelName, explore)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n/*\n%d example rows from Explore `%s`.`%s` (selected columns: %s):\n",
		d.cfg.SampleRows, d.cfg.ModelName, explore, selected)
	if len(res.Columns) > 0 {
		b.WriteString("(" + backtickList(res.Columns) + ")\n")
	}
	for _, row := range res.Rows {
		b.WriteString(formatTuple(row) + "\n")
	}
	b.WriteString("*/")
	return b.String()
}

// Query sanitizes and executes one statement, fetching the full result
// set. Statements that report no column metadata yield a single synthetic
// status row. Failures are returned as a *QueryError carrying the exact
// executed text.
func (d *Database) Query(ctx context.Context, command string) (*Result, error) {
	conn, err := d.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	cleaned := CleanQuery(command)
	d.logger.Info("executing SQL on Looker", "query", truncateString(cleaned, 500))

	res, err := conn.Query(ctx, cleaned)
	if err != nil {
		qErr := &QueryError{Query: cleaned, Err: err}
		d.logger.Error("query execution failed", "query", truncateString(cleaned, 500), "error", err)
		return nil, qErr
	}

	if len(res.Columns) == 0 && len(res.Rows) == 0 {
		msg := "Query executed successfully."
		if res.RowsAffected >= 0 {
			msg += fmt.Sprintf(" %d rows affected.", res.RowsAffected)
		}
		return &Result{Rows: [][]any{{msg}}, RowsAffected: res.RowsAffected}, nil
	}
	return res, nil
}

// Run executes a statement and formats the outcome as display text. It
// never returns an error: every failure, including connection loss,
// becomes part of the returned string so the calling agent can observe it
// and self-correct. fetch selects "all" rows or just the first "one".
func (d *Database) Run(ctx context.Context, command, fetch string) string {
	if fetch != "all" && fetch != "one" {
		return fmt.Sprintf("Error: fetch parameter must be 'all' or 'one', got %s", fetch)
	}

	res, err := d.Query(ctx, command)
	if err != nil {
		d.logger.Error("error during run", "query", truncateString(command, 100), "error", err)
		return fmt.Sprintf("Error: %v", err)
	}

	// Scalar shortcut, e.g. COUNT(*) or a synthetic status row.
	if len(res.Columns) == 0 && len(res.Rows) == 1 && len(res.Rows[0]) == 1 {
		return fmt.Sprint(res.Rows[0][0])
	}

	header := fmt.Sprintf("Columns: [%s]", backtickList(res.Columns))
	if len(res.Rows) == 0 {
		return header + "\nQuery executed successfully. No results returned."
	}

	if fetch == "one" {
		return header + "\nResult: " + formatTuple(res.Rows[0])
	}

	lines := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		lines = append(lines, formatTuple(row))
	}
	return header + "\nResults:\n" + strings.Join(lines, "\n")
}
