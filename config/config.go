// Package config loads and resolves the postgrestools.jsonc project
// configuration: JSONC syntax, an `extends` chain with override
// semantics, and per-rule severity entries.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/postgrestools/pgtools/diag"
)

// DefaultFileName is the config file looked up in the project root.
const DefaultFileName = "postgrestools.jsonc"

const (
	defaultMaxFileSize     = 1 << 20 // 1 MiB
	defaultConnTimeoutSecs = 10
	defaultBranch          = "main"
)

// Config is the top-level configuration. Unknown keys are rejected on
// load (additionalProperties: false).
type Config struct {
	Schema     string            `json:"$schema,omitempty"`
	Extends    []string          `json:"extends,omitempty"`
	VCS        *VCSConfig        `json:"vcs,omitempty"`
	Files      *FilesConfig      `json:"files,omitempty"`
	Migrations *MigrationsConfig `json:"migrations,omitempty"`
	DB         *DBConfig         `json:"db,omitempty"`
	Linter     *LinterConfig     `json:"linter,omitempty"`
}

type VCSConfig struct {
	Enabled       bool   `json:"enabled,omitempty"`
	ClientKind    string `json:"clientKind,omitempty"`
	DefaultBranch string `json:"defaultBranch,omitempty"`
	Root          string `json:"root,omitempty"`
	UseIgnoreFile bool   `json:"useIgnoreFile,omitempty"`
}

type FilesConfig struct {
	Include []string `json:"include,omitempty"`
	Ignore  []string `json:"ignore,omitempty"`
	MaxSize uint64   `json:"maxSize,omitempty"`
}

type MigrationsConfig struct {
	MigrationsDir string `json:"migrationsDir,omitempty"`
	After         uint64 `json:"after,omitempty"`
}

type DBConfig struct {
	Host                            string   `json:"host,omitempty"`
	Port                            uint16   `json:"port,omitempty"`
	Username                        string   `json:"username,omitempty"`
	Password                        string   `json:"password,omitempty"`
	Database                        string   `json:"database,omitempty"`
	ConnTimeoutSecs                 uint16   `json:"connTimeoutSecs,omitempty"`
	AllowStatementExecutionsAgainst []string `json:"allowStatementExecutionsAgainst,omitempty"`
}

type LinterConfig struct {
	Enabled *bool        `json:"enabled,omitempty"`
	Include []string     `json:"include,omitempty"`
	Ignore  []string     `json:"ignore,omitempty"`
	Rules   *RulesConfig `json:"rules,omitempty"`
}

type RulesConfig struct {
	Recommended *bool        `json:"recommended,omitempty"`
	All         *bool        `json:"all,omitempty"`
	Safety      *GroupConfig `json:"safety,omitempty"`
}

// GroupConfig holds the per-group toggles plus the rule entries. Any
// key other than recommended/all names a rule; whether the rule exists
// is checked at materialization time against the registry.
type GroupConfig struct {
	Recommended *bool
	All         *bool
	Rules       map[string]RuleEntry
}

func (g *GroupConfig) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		switch key {
		case "recommended":
			if err := json.Unmarshal(val, &g.Recommended); err != nil {
				return fmt.Errorf("recommended: %w", err)
			}
		case "all":
			if err := json.Unmarshal(val, &g.All); err != nil {
				return fmt.Errorf("all: %w", err)
			}
		default:
			var entry RuleEntry
			if err := json.Unmarshal(val, &entry); err != nil {
				return fmt.Errorf("rule %q: %w", key, err)
			}
			if g.Rules == nil {
				g.Rules = make(map[string]RuleEntry)
			}
			g.Rules[key] = entry
		}
	}
	return nil
}

func (g *GroupConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(g.Rules)+2)
	if g.Recommended != nil {
		out["recommended"] = *g.Recommended
	}
	if g.All != nil {
		out["all"] = *g.All
	}
	for name, entry := range g.Rules {
		out[name] = entry
	}
	return json.Marshal(out)
}

// RuleEntry is either a bare severity string or {level, options?}. An
// entry whose severity does not parse is kept with Invalid set; the
// resolver turns it into a config/invalidSeverity diagnostic and
// ignores the entry.
type RuleEntry struct {
	Level   diag.Severity   `json:"level"`
	Options json.RawMessage `json:"options,omitempty"`
	Invalid string          `json:"-"`
}

func (e *RuleEntry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		sev, perr := diag.ParseSeverity(s)
		if perr != nil {
			e.Invalid = perr.Error()
			return nil
		}
		e.Level = sev
		return nil
	}

	var obj struct {
		Level   string          `json:"level"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	sev, perr := diag.ParseSeverity(obj.Level)
	if perr != nil {
		e.Invalid = perr.Error()
		e.Options = obj.Options
		return nil
	}
	e.Level = sev
	e.Options = obj.Options
	return nil
}

func (e RuleEntry) MarshalJSON() ([]byte, error) {
	if e.Options == nil {
		return json.Marshal(e.Level)
	}
	return json.Marshal(struct {
		Level   diag.Severity   `json:"level"`
		Options json.RawMessage `json:"options,omitempty"`
	}{e.Level, e.Options})
}

// Group returns the group config for the given group name, or nil.
func (r *RulesConfig) Group(name string) *GroupConfig {
	if r == nil {
		return nil
	}
	switch name {
	case "safety":
		return r.Safety
	}
	return nil
}

// LinterEnabled defaults to true.
func (c *Config) LinterEnabled() bool {
	if c == nil || c.Linter == nil || c.Linter.Enabled == nil {
		return true
	}
	return *c.Linter.Enabled
}

// MaxFileSize defaults to 1 MiB.
func (c *Config) MaxFileSize() uint64 {
	if c == nil || c.Files == nil || c.Files.MaxSize == 0 {
		return defaultMaxFileSize
	}
	return c.Files.MaxSize
}

// ConnTimeout defaults to 10 seconds.
func (c *Config) ConnTimeout() time.Duration {
	if c == nil || c.DB == nil || c.DB.ConnTimeoutSecs == 0 {
		return defaultConnTimeoutSecs * time.Second
	}
	return time.Duration(c.DB.ConnTimeoutSecs) * time.Second
}

// HasDB reports whether a database connection is configured.
func (c *Config) HasDB() bool {
	return c != nil && c.DB != nil && c.DB.Host != ""
}

// DefaultBranch defaults to "main".
func (c *Config) DefaultBranch() string {
	if c == nil || c.VCS == nil || c.VCS.DefaultBranch == "" {
		return defaultBranch
	}
	return c.VCS.DefaultBranch
}
