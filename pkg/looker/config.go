package looker

import (
	"errors"
	"strings"
)

const (
	// DefaultDriverName is the name the Avatica driver registers with
	// database/sql.
	DefaultDriverName = "avatica"

	// DefaultSampleRows is the number of example rows appended to each
	// rendered Explore schema. Zero disables sample rows.
	DefaultSampleRows = 3
)

// Config describes a connection to a Looker Open SQL Interface endpoint
// and how its metadata should be rendered.
type Config struct {
	// InstanceURL is the Looker instance, e.g.
	// "https://yourcompany.cloud.looker.com". A bare host is assumed to
	// be https.
	InstanceURL string

	// ModelName is the LookML model treated as the SQL schema. Explores
	// are enumerated under this model.
	ModelName string

	// ClientID and ClientSecret are Looker API3 credentials.
	ClientID     string
	ClientSecret string

	// DriverName is the database/sql driver used for query execution.
	// Defaults to "avatica".
	DriverName string

	// IncludeTables optionally restricts which Explores are usable. When
	// empty, every Explore under ModelName is usable.
	IncludeTables []string

	// SampleRows is the number of example rows fetched per Explore when
	// rendering schema text. Zero disables sample rows; DefaultSampleRows
	// is the conventional value.
	SampleRows int

	// ConnParams holds extra driver connection properties appended to the
	// DSN as-is.
	ConnParams map[string]string
}

var (
	errMissingInstanceURL = errors.New("looker: instance URL is required")
	errMissingModelName   = errors.New("looker: LookML model name is required")
	errMissingCredentials = errors.New("looker: client ID and client secret are required")
)

// Validate checks required fields and reports the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InstanceURL) == "" {
		return errMissingInstanceURL
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return errMissingModelName
	}
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return errMissingCredentials
	}
	return nil
}

// WithDefaults returns a copy of the config with the URL scheme, driver
// name and sample-row count normalized.
func (c Config) WithDefaults() Config {
	if !strings.HasPrefix(c.InstanceURL, "http://") && !strings.HasPrefix(c.InstanceURL, "https://") {
		c.InstanceURL = "https://" + c.InstanceURL
	}
	c.InstanceURL = strings.TrimRight(c.InstanceURL, "/")
	if c.DriverName == "" {
		c.DriverName = DefaultDriverName
	}
	if c.SampleRows < 0 {
		c.SampleRows = 0
	}
	return c
}

// includeSet returns the include list as a set, or nil when no restriction
// is configured.
func (c *Config) includeSet() map[string]struct{} {
	if len(c.IncludeTables) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.IncludeTables))
	for _, name := range c.IncludeTables {
		set[name] = struct{}{}
	}
	return set
}
