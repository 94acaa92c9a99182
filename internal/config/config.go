// Package config defines the configuration schema and loads it from a
// YAML file with environment overrides.
package config

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

var (
	repoNameRe = regexp.MustCompile(`^[-_A-Za-z0-9]+/[-_.A-Za-z0-9]+$`)
	loginRe    = regexp.MustCompile(`^[-_A-Za-z0-9]+$`)
)

// Config is the validated configuration for one report run. It is
// constructed once by Load and immutable thereafter.
type Config struct {
	Project         string             `yaml:"project"`
	Repositories    []RepositorySpec   `yaml:"repositories"`
	Organizations   []OrganizationSpec `yaml:"organizations"`
	Members         []string           `yaml:"members"`
	RecentDays      int                `yaml:"recent_days"`
	NumOldestPRs    int                `yaml:"num_oldest_prs"`
	MaxRandomIssues int                `yaml:"max_random_issues"`
	Token           string             `yaml:"-" env:"GITHUB_TOKEN"`
}

// RepositorySpec is one entry of the repositories list. It accepts either
// a bare "owner/name" string or a mapping with per-repository options;
// both shapes normalize to this struct at load time.
type RepositorySpec struct {
	Name               string `yaml:"name"`
	MemberActivityOnly bool   `yaml:"member_activity_only"`
}

// UnmarshalYAML accepts the string shorthand for a repository entry.
func (r *RepositorySpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&r.Name)
	}
	type plain RepositorySpec
	return value.Decode((*plain)(r))
}

// OrganizationSpec is one entry of the organizations list, consumed only
// during target resolution.
type OrganizationSpec struct {
	Name               string       `yaml:"name"`
	FetchMembers       FetchMembers `yaml:"fetch_members"`
	MemberActivityOnly bool         `yaml:"member_activity_only"`
}

// UnmarshalYAML accepts the string shorthand for an organization entry.
func (o *OrganizationSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&o.Name)
	}
	type plain OrganizationSpec
	return value.Decode((*plain)(o))
}

// FetchMembersMode enumerates the variants of the fetch_members field.
type FetchMembersMode int

const (
	// FetchNone admits no organization members (the default).
	FetchNone FetchMembersMode = iota
	// FetchAll admits every organization member.
	FetchAll
	// FetchPattern admits members whose login matches a regular
	// expression anchored at the start of the login.
	FetchPattern
)

// FetchMembers models the false | true | regex union of the
// fetch_members field as a tagged variant.
type FetchMembers struct {
	Mode    FetchMembersMode
	Pattern string
}

// UnmarshalYAML decodes a YAML boolean or string into the variant.
func (f *FetchMembers) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		if b {
			f.Mode = FetchAll
		} else {
			f.Mode = FetchNone
		}
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("fetch_members must be a boolean or a regular expression string")
	}
	f.Mode = FetchPattern
	f.Pattern = s
	return nil
}

// Matcher returns the login predicate for this variant. Patterns are
// compiled once, anchored at the start of the login.
func (f FetchMembers) Matcher() (func(string) bool, error) {
	switch f.Mode {
	case FetchAll:
		return func(string) bool { return true }, nil
	case FetchPattern:
		re, err := regexp.Compile("^(?:" + f.Pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid fetch_members pattern %q: %w", f.Pattern, err)
		}
		return re.MatchString, nil
	default:
		return func(string) bool { return false }, nil
	}
}

// Validate checks the whole configuration and reports every violation at
// once. Any error returned here is fatal: no fetching may begin.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.RecentDays < 1 {
		errs = multierror.Append(errs, fmt.Errorf("recent_days must be a positive integer, got %d", c.RecentDays))
	}
	if c.NumOldestPRs < 1 {
		errs = multierror.Append(errs, fmt.Errorf("num_oldest_prs must be a positive integer, got %d", c.NumOldestPRs))
	}
	if c.MaxRandomIssues < 1 {
		errs = multierror.Append(errs, fmt.Errorf("max_random_issues must be a positive integer, got %d", c.MaxRandomIssues))
	}
	if len(c.Repositories) == 0 && len(c.Organizations) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("at least one repository or organization must be configured"))
	}
	for _, r := range c.Repositories {
		if !repoNameRe.MatchString(r.Name) {
			errs = multierror.Append(errs, fmt.Errorf("invalid repository name %q: expected owner/name", r.Name))
		}
	}
	for _, o := range c.Organizations {
		if !loginRe.MatchString(o.Name) {
			errs = multierror.Append(errs, fmt.Errorf("invalid organization name %q", o.Name))
		}
		if _, err := o.FetchMembers.Matcher(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("organization %s: %w", o.Name, err))
		}
	}
	for _, m := range c.Members {
		if !loginRe.MatchString(m) {
			errs = multierror.Append(errs, fmt.Errorf("invalid member login %q", m))
		}
	}
	return errs.ErrorOrNil()
}

// Load reads the configuration file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Project:         "Project",
		RecentDays:      7,
		NumOldestPRs:    10,
		MaxRandomIssues: 5,
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
