// package config holds the process-wide settings for the scope
// reconciliation handlers. A Config is built once when the process
// starts and handed by value to every component that needs it;
// nothing below the entrypoints reads the environment directly.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/alertlogic/scopesync/pkg/cfaws"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EndpointProduction  = "production"
	EndpointIntegration = "integration"
)

// Environment variable names, kept identical to the CloudFormation
// templates which deploy the handlers.
const (
	EnvAPIEndpoint          = "AlertLogicApiEndpoint"
	EnvFullRegionCoverage   = "FullRegionCoverage"
	EnvTargetRegion         = "TargetRegion"
	EnvSecret               = "Secret"
	EnvSecretRegion         = "SecretRegion"
	EnvRegistrationTopic    = "RegistrationSNS"
	EnvCoverageTags         = "CoverageTags"
	EnvTagKeys              = "tag_keys"
	EnvTagPublicValues      = "tag_public_values"
	EnvTagPrivateValues     = "tag_private_values"
	EnvResolveAccountNames  = "ResolveAccountNames"
	EnvAPIMaxAttempts       = "ApiMaxAttempts"
	EnvAPIRequestsPerSecond = "ApiRequestsPerSecond"
	envAWSRegion            = "AWS_REGION"
)

// EnvSecretLegacy is the secret variable of the tag change handler's
// template. Secret wins when both are set.
const EnvSecretLegacy = "secret"

type Config struct {
	// APIEndpoint selects the monitoring service environment.
	APIEndpoint string `toml:"api_endpoint" validate:"oneof=production integration"`

	// FullRegionCoverage derives the include scope of new deployments from
	// TargetRegions, and makes per-account scope notifications a no-op.
	FullRegionCoverage bool     `toml:"full_region_coverage"`
	TargetRegions      []string `toml:"target_regions" validate:"dive,required"`

	// SecretName is the Secrets Manager secret holding the monitoring API keys.
	SecretName   string `toml:"secret"`
	SecretRegion string `toml:"secret_region,omitempty"`

	// used by scope discovery
	RegistrationTopicARN string `toml:"registration_topic_arn,omitempty"`
	CoverageTags         string `toml:"coverage_tags,omitempty"`

	// used by the tag change handler
	TagKeys          []string `toml:"tag_keys,omitempty"`
	TagPublicValues  []string `toml:"tag_public_values,omitempty"`
	TagPrivateValues []string `toml:"tag_private_values,omitempty"`

	// ResolveAccountNames names new deployments after the AWS Organizations
	// account name rather than the raw account id.
	ResolveAccountNames bool `toml:"resolve_account_names,omitempty"`

	APIMaxAttempts       uint64 `toml:"api_max_attempts,omitempty" validate:"min=1"`
	APIRequestsPerSecond int    `toml:"api_requests_per_second,omitempty" validate:"min=1"`
}

// Default returns a Config with every optional setting populated.
func Default() Config {
	return Config{
		APIEndpoint:          EndpointProduction,
		APIMaxAttempts:       3,
		APIRequestsPerSecond: 10,
	}
}

type LoadOpts struct {
	// File is an optional TOML file applied on top of the defaults.
	File string
	// EnvFile is an optional dotenv file loaded into the process environment
	// before the environment is read.
	EnvFile string
	// Lookup reads an environment variable. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// FromEnv builds the Config the Lambda handlers run with.
func FromEnv() (Config, error) {
	return Load(LoadOpts{})
}

// Load builds a Config from defaults, an optional TOML file and the
// environment, in that order, and validates the result.
func Load(opts LoadOpts) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return Config{}, errors.Wrapf(err, "loading env file %s", opts.EnvFile)
		}
	}
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	c := Default()
	if opts.File != "" {
		if _, err := toml.DecodeFile(opts.File, &c); err != nil {
			return Config{}, errors.Wrapf(err, "decoding config file %s", opts.File)
		}
	}

	if err := c.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIEndpoint); ok && v != "" {
		c.APIEndpoint = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvFullRegionCoverage); ok {
		c.FullRegionCoverage = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := lookup(EnvTargetRegion); ok {
		regions, err := ParseRegions(v)
		if err != nil {
			return err
		}
		c.TargetRegions = regions
	}
	if v, ok := lookup(EnvSecret); ok && v != "" {
		c.SecretName = v
	} else if v, ok := lookup(EnvSecretLegacy); ok && v != "" {
		c.SecretName = v
	}
	if v, ok := lookup(EnvSecretRegion); ok && v != "" {
		c.SecretRegion = v
	}
	if c.SecretRegion == "" {
		c.SecretRegion, _ = lookup(envAWSRegion)
	}
	if v, ok := lookup(EnvRegistrationTopic); ok {
		c.RegistrationTopicARN = v
	}
	if v, ok := lookup(EnvCoverageTags); ok {
		c.CoverageTags = v
	}
	if v, ok := lookup(EnvTagKeys); ok {
		c.TagKeys = SplitList(v)
	}
	if v, ok := lookup(EnvTagPublicValues); ok {
		c.TagPublicValues = SplitList(v)
	}
	if v, ok := lookup(EnvTagPrivateValues); ok {
		c.TagPrivateValues = SplitList(v)
	}
	if v, ok := lookup(EnvResolveAccountNames); ok {
		c.ResolveAccountNames = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := lookup(EnvAPIMaxAttempts); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvAPIMaxAttempts)
		}
		c.APIMaxAttempts = n
	}
	if v, ok := lookup(EnvAPIRequestsPerSecond); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvAPIRequestsPerSecond)
		}
		c.APIRequestsPerSecond = n
	}
	return nil
}

var validate = validator.New()

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.FullRegionCoverage && len(c.TargetRegions) == 0 {
		return errors.Errorf("invalid configuration: %s is enabled but %s is empty", EnvFullRegionCoverage, EnvTargetRegion)
	}
	return nil
}

// RequireSecret reports a missing API credentials secret. Every handler
// talking to the monitoring API needs one.
func RequireSecret(c Config) error {
	if c.SecretName == "" {
		return errors.Errorf("invalid configuration: %s is required", EnvSecret)
	}
	return nil
}

// RequireDiscovery reports settings missing for scope discovery.
func RequireDiscovery(c Config) error {
	if c.RegistrationTopicARN == "" {
		return errors.Errorf("invalid configuration: %s is required", EnvRegistrationTopic)
	}
	return nil
}

// SplitList splits a comma separated list, dropping whitespace and empty
// items. Items are lowercased since tag matching is case insensitive.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(strings.ReplaceAll(s, " ", ""), ",") {
		if item == "" {
			continue
		}
		out = append(out, strings.ToLower(item))
	}
	return out
}

// ParseRegions parses a comma separated region list. Shorthand regions
// such as "ue1" are expanded to their full name.
func ParseRegions(s string) ([]string, error) {
	var regions []string
	for _, r := range strings.Split(strings.ReplaceAll(s, " ", ""), ",") {
		if r == "" {
			continue
		}
		expanded, err := cfaws.ExpandRegion(r)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing region %q", r)
		}
		regions = append(regions, expanded)
	}
	return regions, nil
}
