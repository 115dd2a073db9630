// Package config provides run configuration for the Daktela extractor.
// A configuration is loaded once from a YAML file (with ${ENV_VAR}
// substitution), validated before any network call, and then treated as
// immutable for the rest of the run.
package config

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jsvoboda/daktela-extractor/pkg/errors"
)

// DateLayout is the wire format for resolved date-window filter values.
const DateLayout = "2006-01-02 15:04:05"

// Multi-label hosts like a.b.daktela.com are valid; the tenant is the
// label closest to the vendor domain.
var urlPattern = regexp.MustCompile(`^https?://(.+)\.daktela\.com/?$`)

// Config holds all parameters of one extraction run.
type Config struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Either URL (https://{server}.daktela.com) or Server must be set.
	URL    string `yaml:"url"`
	Server string `yaml:"server"`

	// DateFrom and DateTo bound the extraction window. Accepted values:
	// "today" or "0" (30 minutes before now), a negative integer N
	// (N days from now), or an explicit YYYY-MM-DD date.
	DateFrom string `yaml:"from"`
	DateTo   string `yaml:"to"`

	// Tables lists requested table names. Entries may themselves be
	// comma-separated.
	Tables []string `yaml:"tables"`

	Incremental bool `yaml:"incremental"`
	Debug       bool `yaml:"debug"`

	// PageSize is the API page size; 0 means the client default.
	PageSize int `yaml:"page_size"`

	// OutputDir is where CSV artifacts and manifests are written.
	OutputDir string `yaml:"output_dir"`

	// CustomTables overrides or extends the built-in table registry.
	CustomTables map[string]TableOverride `yaml:"custom_tables"`

	// Now is the clock used for date resolution, injectable for tests.
	Now func() time.Time `yaml:"-"`
}

// TableOverride is a user-supplied table declaration merged over the
// built-in registry. Fields mirror the registry schema.
type TableOverride struct {
	Path                string           `yaml:"path"`
	Parent              string           `yaml:"parent"`
	Child               string           `yaml:"child"`
	RequirementTable    string           `yaml:"requirement_table"`
	RequirementColumn   string           `yaml:"requirement_column"`
	Columns             []string         `yaml:"columns"`
	Filters             []FilterOverride `yaml:"filters"`
	PrimaryKeys         []string         `yaml:"primary_keys"`
	SecondaryKeys       []string         `yaml:"secondary_keys"`
	Keys                []string         `yaml:"keys"`
	ListColumns         []string         `yaml:"list_columns"`
	ListOfObjectColumns []string         `yaml:"list_of_object_columns"`
	NoPrefixColumns     []string         `yaml:"no_prefix_columns"`
}

// FilterOverride is one filter in a table override. A nil Value is
// resolved from the date window at run time.
type FilterOverride struct {
	Field    string  `yaml:"field"`
	Operator string  `yaml:"operator"`
	Value    *string `yaml:"value"`
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Validate checks the configuration before any network call.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New(errors.ErrorTypeConfig, "username is required")
	}
	if c.Password == "" {
		return errors.New(errors.ErrorTypeConfig, "password is required")
	}
	if strings.TrimSpace(c.URL) == "" && strings.TrimSpace(c.Server) == "" {
		return errors.New(errors.ErrorTypeConfig, "either 'url' or 'server' must be provided")
	}
	if u := strings.TrimSpace(c.URL); u != "" && !urlPattern.MatchString(u) {
		return errors.Newf(errors.ErrorTypeConfig,
			"invalid url format: %s (expected https://{server}.daktela.com)", u)
	}
	if len(c.TableList()) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one table must be requested")
	}

	from, err := c.ParseDate(c.DateFrom)
	if err != nil {
		return err
	}
	to, err := c.ParseDate(c.DateTo)
	if err != nil {
		return err
	}
	if !from.Before(to) {
		return errors.Newf(errors.ErrorTypeConfig,
			"start date (%s) must be before end date (%s)",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	return nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Config) BaseURL() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "https://" + c.Server + ".daktela.com"
}

// ServerName returns the tenant identifier, either the explicit server
// name or the one extracted from the URL.
func (c *Config) ServerName() (string, error) {
	if s := strings.TrimSpace(c.Server); s != "" {
		return s, nil
	}
	if m := urlPattern.FindStringSubmatch(strings.TrimSpace(c.URL)); m != nil {
		labels := strings.Split(m[1], ".")
		return labels[len(labels)-1], nil
	}
	return "", errors.New(errors.ErrorTypeConfig, "could not extract server name from url")
}

// TableList returns the requested table names, trimmed and with
// comma-separated entries expanded.
func (c *Config) TableList() []string {
	var tables []string
	for _, entry := range c.Tables {
		for _, name := range strings.Split(entry, ",") {
			if name = strings.TrimSpace(name); name != "" {
				tables = append(tables, name)
			}
		}
	}
	return tables
}

// ParseDate resolves one bound of the date window.
func (c *Config) ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	if strings.EqualFold(value, "today") || value == "0" {
		return c.now().Add(-30 * time.Minute), nil
	}

	if strings.HasPrefix(value, "-") {
		if days, err := strconv.Atoi(value); err == nil {
			return c.now().AddDate(0, 0, days), nil
		}
	}

	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, errors.Newf(errors.ErrorTypeConfig,
			"invalid date format: %s (expected 'today', '0', a negative integer, or YYYY-MM-DD)", value)
	}
	return t, nil
}

// Window returns the resolved extraction date window.
func (c *Config) Window() (from, to time.Time, err error) {
	if from, err = c.ParseDate(c.DateFrom); err != nil {
		return
	}
	to, err = c.ParseDate(c.DateTo)
	return
}
