// Package toolkit exposes a looker.Database as callable tools for a
// langchaingo agent. Every tool returns its outcome as text and never an
// error: failures become observations the agent can react to.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools"
)

// Database is the surface the tools need from pkg/looker.
type Database interface {
	Dialect() string
	UsableTableNames(ctx context.Context) ([]string, error)
	TableInfo(ctx context.Context, tableNames []string) (string, error)
	Run(ctx context.Context, command, fetch string) string
}

// Toolkit bundles the three SQL tools over one Database.
type Toolkit struct {
	db Database
}

// New returns a Toolkit over db.
func New(db Database) *Toolkit {
	return &Toolkit{db: db}
}

// Dialect reports the database dialect for prompt construction.
func (t *Toolkit) Dialect() string {
	return t.db.Dialect()
}

// GetTools returns the tool set handed to the agent.
func (t *Toolkit) GetTools() []tools.Tool {
	return []tools.Tool{
		&ListTablesTool{db: t.db},
		&SchemaTool{db: t.db},
		&QueryTool{db: t.db},
	}
}

// ListTablesTool lists the usable Explores.
type ListTablesTool struct {
	db Database
}

var _ tools.Tool = &ListTablesTool{}

func (t *ListTablesTool) Name() string {
	return "sql_db_list_tables"
}

func (t *ListTablesTool) Description() string {
	return "Input is an empty string. Output is a comma separated list of available 'tables' (Looker Explores)."
}

func (t *ListTablesTool) Call(ctx context.Context, input string) (string, error) {
	names, err := t.db.UsableTableNames(ctx)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return strings.Join(names, ", "), nil
}

// SchemaTool renders CREATE TABLE style schema text for Explores.
type SchemaTool struct {
	db Database
}

var _ tools.Tool = &SchemaTool{}

func (t *SchemaTool) Name() string {
	return "sql_db_schema"
}

func (t *SchemaTool) Description() string {
	return "Input is a comma separated list of 'table' (Explore) names or a single table name. " +
		"Output is the schema (LookML model, Explore, and `view.field` columns) and sample rows (if available) for those Explores. " +
		"Use an empty string or pass no input to get schema for all available Explores."
}

func (t *SchemaTool) Call(ctx context.Context, input string) (string, error) {
	names, all := parseTableNames(input)
	if !all && len(names) == 0 {
		return "Please provide one or more table (Explore) names, or an empty string for all.", nil
	}

	var target []string
	if !all {
		target = names
	}
	info, err := t.db.TableInfo(ctx, target)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return info, nil
}

// QueryTool executes a SQL query against the Looker endpoint.
type QueryTool struct {
	db Database
}

var _ tools.Tool = &QueryTool{}

func (t *QueryTool) Name() string {
	return "sql_db_query"
}

func (t *QueryTool) Description() string {
	return "Input to this tool is a detailed and syntactically correct SQL query (using backticks for identifiers like `model`.`explore` and `view.field`). " +
		"Output is a result from the database. DO NOT end queries with a semicolon. " +
		"If the query is not correct, an error message will be returned. " +
		"If an error is returned, rewrite the query (especially checking backtick usage and semicolon rule) and try again. " +
		"If you encounter an issue with an Unknown column, use 'sql_db_schema' to verify the correct table and column names (`view.field` format)."
}

func (t *QueryTool) Call(ctx context.Context, input string) (string, error) {
	return t.db.Run(ctx, input, "all"), nil
}

// parseTableNames normalizes tool input into a canonical form: either
// "all Explores" (empty input) or a cleaned name list. Accepted shapes
// are a comma-separated string and a JSON array of strings; surrounding
// whitespace and backticks are stripped from each name. Input that is
// non-empty but yields no valid names returns (nil, false) so the caller
// can respond with a corrective message.
func parseTableNames(input string) (names []string, all bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, true
	}

	var parts []string
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			parts = list
		}
	}
	if parts == nil {
		parts = strings.Split(trimmed, ",")
	}

	for _, part := range parts {
		name := cleanTableName(part)
		if name != "" {
			names = append(names, name)
		}
	}
	return names, false
}

func cleanTableName(name string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(name), "`"))
}
