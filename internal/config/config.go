package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	VCenter  *vcenterConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"vcenter_bridge"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address        string `envconfig:"VCENTER_BRIDGE_ADDRESS" default:":8480"`
	MetricsAddress string `envconfig:"VCENTER_BRIDGE_METRICS_ADDRESS" default:":8481"`
	LogLevel       string `envconfig:"VCENTER_BRIDGE_LOG_LEVEL" default:"info"`
}

type vcenterConfig struct {
	// Candidate servers the dashboard may connect to.
	Servers []string `envconfig:"VCENTER_BRIDGE_SERVERS" default:""`

	ConnectTimeout time.Duration `envconfig:"VCENTER_BRIDGE_CONNECT_TIMEOUT" default:"90s"`
	VerifyTLS      bool          `envconfig:"VCENTER_BRIDGE_VERIFY_TLS" default:"true"`

	// Hints surfaced to the dashboard while a login is pending out-of-band
	// approval. Logins with MFA can block for the full connect timeout.
	MFAEnabled bool   `envconfig:"VCENTER_BRIDGE_MFA_ENABLED" default:"false"`
	MFALabel   string `envconfig:"VCENTER_BRIDGE_MFA_LABEL" default:"Multi-factor authentication"`
	MFAMessage string `envconfig:"VCENTER_BRIDGE_MFA_MESSAGE" default:"Approve the sign-in request on your device"`

	// Name matching used by the reconciliation engine.
	MatchMode    string `envconfig:"VCENTER_BRIDGE_MATCH_MODE" default:"exact"`
	MatchPattern string `envconfig:"VCENTER_BRIDGE_MATCH_PATTERN" default:""`

	// When set, imported records are created under their normalized name
	// instead of the raw vCenter display name.
	NormalizeImportedNames bool `envconfig:"VCENTER_BRIDGE_NORMALIZE_IMPORTED_NAMES" default:"false"`

	// Optional defaults applied to created records. Unresolvable slugs are
	// logged and skipped, never fatal.
	DefaultTagSlug      string `envconfig:"VCENTER_BRIDGE_DEFAULT_TAG" default:""`
	DefaultRoleSlug     string `envconfig:"VCENTER_BRIDGE_DEFAULT_ROLE" default:""`
	DefaultPlatformSlug string `envconfig:"VCENTER_BRIDGE_DEFAULT_PLATFORM" default:""`

	// Ordered "pattern=platform-slug" pairs mapping guest OS names to
	// platforms. First match wins.
	PlatformMappings []string `envconfig:"VCENTER_BRIDGE_PLATFORM_MAPPINGS" default:""`
}

func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
