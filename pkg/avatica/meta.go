package avatica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/semanticbi/looker-sql-agent/pkg/logging"
	"github.com/semanticbi/looker-sql-agent/pkg/looker"
)

// metaFrameSize is the row batch size requested when a metadata result
// set spans multiple frames.
const metaFrameSize = 1000

// RemoteError is an error response from the Avatica server, carrying the
// remote diagnostic fields.
type RemoteError struct {
	Code     int
	SQLState string
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("avatica: remote error %d (%s): %s", e.Code, e.SQLState, e.Message)
}

// metaClient speaks the Avatica JSON protocol for the catalog-metadata
// requests (getTables, getColumns) that the database/sql driver does not
// expose. It is the Go counterpart of JDBC's DatabaseMetaData.
type metaClient struct {
	endpoint     string
	username     string
	password     string
	connectionID string
	httpClient   *http.Client
	logger       *logging.Logger
}

func newMetaClient(endpoint, username, password string, httpClient *http.Client, logger *logging.Logger) *metaClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &metaClient{
		endpoint:     endpoint,
		username:     username,
		password:     password,
		connectionID: uuid.NewString(),
		httpClient:   httpClient,
		logger:       logger,
	}
}

type resultColumn struct {
	ColumnName string `json:"columnName"`
}

type signature struct {
	Columns []resultColumn `json:"columns"`
}

type frame struct {
	Offset uint64  `json:"offset"`
	Done   bool    `json:"done"`
	Rows   [][]any `json:"rows"`
}

type resultSetResponse struct {
	Response    string    `json:"response"`
	StatementID int       `json:"statementId"`
	Signature   signature `json:"signature"`
	FirstFrame  frame     `json:"firstFrame"`
}

type fetchResponse struct {
	Response string `json:"response"`
	Frame    frame  `json:"frame"`
}

type errorResponse struct {
	Response     string `json:"response"`
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    int    `json:"errorCode"`
	SQLState     string `json:"sqlState"`
}

// post sends one Avatica JSON request and decodes the response into out.
// Error responses are surfaced as *RemoteError.
func (m *metaClient) post(ctx context.Context, request any, out any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("avatica: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("avatica: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(m.username, m.password)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("avatica: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("avatica: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("avatica: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var errResp errorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Response == "error" {
		return &RemoteError{Code: errResp.ErrorCode, SQLState: errResp.SQLState, Message: errResp.ErrorMessage}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("avatica: decoding response: %w", err)
	}
	return nil
}

// open registers this client's connection ID with the server.
func (m *metaClient) open(ctx context.Context) error {
	request := map[string]any{
		"request":      "openConnection",
		"connectionId": m.connectionID,
		"info":         map[string]string{"user": m.username, "password": m.password},
	}
	var resp struct {
		Response string `json:"response"`
	}
	return m.post(ctx, request, &resp)
}

// close releases the server-side connection. Best effort.
func (m *metaClient) close(ctx context.Context) error {
	request := map[string]any{
		"request":      "closeConnection",
		"connectionId": m.connectionID,
	}
	var resp struct {
		Response string `json:"response"`
	}
	return m.post(ctx, request, &resp)
}

// resultSet issues one metadata request and drains every frame of the
// resulting row set.
func (m *metaClient) resultSet(ctx context.Context, request map[string]any) (*signature, [][]any, error) {
	var resp resultSetResponse
	if err := m.post(ctx, request, &resp); err != nil {
		return nil, nil, err
	}

	rows := resp.FirstFrame.Rows
	done := resp.FirstFrame.Done
	offset := resp.FirstFrame.Offset + uint64(len(resp.FirstFrame.Rows))

	for !done {
		fetch := map[string]any{
			"request":      "fetch",
			"connectionId": m.connectionID,
			"statementId":  resp.StatementID,
			"offset":       offset,
			"frameMaxSize": metaFrameSize,
		}
		var next fetchResponse
		if err := m.post(ctx, fetch, &next); err != nil {
			return nil, nil, err
		}
		rows = append(rows, next.Frame.Rows...)
		offset += uint64(len(next.Frame.Rows))
		done = next.Frame.Done || len(next.Frame.Rows) == 0
	}

	return &resp.Signature, rows, nil
}

// Tables lists table names under schemaPattern, the getTables analog of
// DatabaseMetaData.getTables(nil, schema, "%", ["TABLE", "VIEW"]).
func (m *metaClient) Tables(ctx context.Context, schemaPattern string) ([]string, error) {
	request := map[string]any{
		"request":          "getTables",
		"connectionId":     m.connectionID,
		"schemaPattern":    schemaPattern,
		"tableNamePattern": "%",
		"typeList":         []string{"TABLE", "VIEW"},
		"hasTypeList":      true,
	}
	sig, rows, err := m.resultSet(ctx, request)
	if err != nil {
		return nil, err
	}

	idx := columnIndex(sig)
	nameIdx, ok := idx["TABLE_NAME"]
	if !ok {
		return nil, fmt.Errorf("avatica: getTables response missing TABLE_NAME column")
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name := stringAt(row, nameIdx); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Columns lists field metadata for one table. Beyond the standard JDBC
// columns, Looker's endpoint reports HIDDEN, FIELD_LABEL, FIELD_ALIAS,
// FIELD_CATEGORY and FIELD_DESCRIPTION; all are looked up by name so a
// server that omits them degrades to empty metadata instead of failing.
func (m *metaClient) Columns(ctx context.Context, schema, table string) ([]looker.Field, error) {
	request := map[string]any{
		"request":           "getColumns",
		"connectionId":      m.connectionID,
		"schemaPattern":     schema,
		"tableNamePattern":  table,
		"columnNamePattern": "%",
	}
	sig, rows, err := m.resultSet(ctx, request)
	if err != nil {
		return nil, err
	}

	idx := columnIndex(sig)
	fields := make([]looker.Field, 0, len(rows))
	for _, row := range rows {
		field := looker.Field{
			Name:        lookupString(row, idx, "COLUMN_NAME"),
			Type:        lookupString(row, idx, "TYPE_NAME"),
			Label:       lookupString(row, idx, "FIELD_LABEL"),
			Alias:       lookupString(row, idx, "FIELD_ALIAS"),
			Category:    lookupString(row, idx, "FIELD_CATEGORY"),
			Description: lookupString(row, idx, "FIELD_DESCRIPTION"),
			Hidden:      lookupBool(row, idx, "HIDDEN"),
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// columnIndex maps upper-cased column names to their position.
func columnIndex(sig *signature) map[string]int {
	idx := make(map[string]int, len(sig.Columns))
	for i, col := range sig.Columns {
		idx[strings.ToUpper(col.ColumnName)] = i
	}
	return idx
}

func lookupString(row []any, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok {
		return ""
	}
	return stringAt(row, i)
}

func stringAt(row []any, i int) string {
	if i < 0 || i >= len(row) || row[i] == nil {
		return ""
	}
	return fmt.Sprint(row[i])
}

// lookupBool returns nil when the column is absent or not interpretable
// as a boolean, so the caller can distinguish "not hidden" from "unknown".
func lookupBool(row []any, idx map[string]int, name string) *bool {
	i, ok := idx[name]
	if !ok || i >= len(row) || row[i] == nil {
		return nil
	}
	switch v := row[i].(type) {
	case bool:
		return &v
	case string:
		b := strings.EqualFold(v, "true")
		return &b
	case float64:
		b := v != 0
		return &b
	default:
		return nil
	}
}
