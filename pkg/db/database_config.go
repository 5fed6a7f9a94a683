package db

import (
	"fmt"
	"sort"
	"strings"
)

type DatabaseConfig struct {
	Host             string            `json:"host"`
	Port             int               `json:"port"`
	Username         string            `json:"username"`
	Password         string            `json:"password"`
	Database         string            `json:"database"`
	AdditionalParams map[string]string `json:"additionalParams,omitempty"` // Optional additional connection parameters mapped into the connection string
}

// ConnectionOverride holds connection settings that take precedence over the ones reported by
// the pooling service. The service typically reports its own (e.g. docker internal) view of
// the PostgreSQL server, which might not be reachable from where the tests run.
// Zero values are not applied.
type ConnectionOverride struct {
	Host     string
	Port     int
	Username string
	Password string
}

// IsEmpty reports whether the override would leave every config untouched.
func (o ConnectionOverride) IsEmpty() bool {
	return o == ConnectionOverride{}
}

// WithOverride returns a copy of the config with all non-zero override fields applied.
func (c DatabaseConfig) WithOverride(o ConnectionOverride) DatabaseConfig {
	res := c

	if len(o.Host) > 0 {
		res.Host = o.Host
	}
	if o.Port > 0 {
		res.Port = o.Port
	}
	if len(o.Username) > 0 {
		res.Username = o.Username
	}
	if len(o.Password) > 0 {
		res.Password = o.Password
	}

	if c.AdditionalParams != nil {
		res.AdditionalParams = make(map[string]string, len(c.AdditionalParams))
		for k, v := range c.AdditionalParams {
			res.AdditionalParams[k] = v
		}
	}

	return res
}

// WithParams returns a copy of the config with params merged into AdditionalParams.
// Params already present in the config are kept.
func (c DatabaseConfig) WithParams(params map[string]string) DatabaseConfig {
	if len(params) == 0 {
		return c
	}

	res := c
	res.AdditionalParams = make(map[string]string, len(c.AdditionalParams)+len(params))
	for k, v := range params {
		res.AdditionalParams[k] = v
	}
	for k, v := range c.AdditionalParams {
		res.AdditionalParams[k] = v
	}

	return res
}

// ConnectionString generates a connection string to be passed to sql.Open or equivalents, assuming Postgres syntax (lib/pq key=value form).
// AdditionalParams are appended in key order, sslmode defaults to "disable" unless provided.
// Values which are empty or contain whitespace, quotes or backslashes are single-quoted.
func (c DatabaseConfig) ConnectionString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d user=%s password=%s dbname=%s",
		quoteValue(c.Host), c.Port, quoteValue(c.Username), quoteValue(c.Password), quoteValue(c.Database))

	if _, ok := c.AdditionalParams["sslmode"]; !ok {
		b.WriteString(" sslmode=disable")
	}

	if len(c.AdditionalParams) > 0 {
		params := make([]string, 0, len(c.AdditionalParams))
		for param := range c.AdditionalParams {
			params = append(params, param)
		}

		sort.Strings(params)

		for _, param := range params {
			fmt.Fprintf(&b, " %s=%s", param, quoteValue(c.AdditionalParams[param]))
		}
	}

	return b.String()
}

var valueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quoteValue follows the libpq rules for key=value connection strings.
func quoteValue(v string) string {
	if len(v) > 0 && !strings.ContainsAny(v, " \t\n\r\v\f'\\") {
		return v
	}

	return "'" + valueEscaper.Replace(v) + "'"
}
