package tugraz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tu-graz-library/invenio-config-tugraz/utils"
)

// Config is the frozen configuration snapshot tables and the extension are
// built from. Keys mirror the host application's configuration names in
// lower case.
type Config struct {
	Shibboleth        bool                    `json:"invenio_config_tugraz_shibboleth" yaml:"invenio_config_tugraz_shibboleth" mapstructure:"invenio_config_tugraz_shibboleth"`
	SingleIP          []string                `json:"invenio_config_tugraz_single_ip" yaml:"invenio_config_tugraz_single_ip" mapstructure:"invenio_config_tugraz_single_ip"`
	IPNetwork         string                  `json:"invenio_config_tugraz_ip_network" yaml:"invenio_config_tugraz_ip_network" mapstructure:"invenio_config_tugraz_ip_network"`
	AuthenticatedRole string                  `json:"invenio_config_tugraz_authenticated_role" yaml:"invenio_config_tugraz_authenticated_role" mapstructure:"invenio_config_tugraz_authenticated_role"`
	Curators          map[string]CuratorEntry `json:"tugraz_curators" yaml:"tugraz_curators" mapstructure:"tugraz_curators"`
	CuratorTimeout    time.Duration           `json:"curator_lookup_timeout" yaml:"curator_lookup_timeout" mapstructure:"curator_lookup_timeout"`

	SAMLUpdateURL      string        `json:"config_tugraz_saml_update_url" yaml:"config_tugraz_saml_update_url" mapstructure:"config_tugraz_saml_update_url"`
	SAMLUpdateInterval time.Duration `json:"config_tugraz_saml_update_interval" yaml:"config_tugraz_saml_update_interval" mapstructure:"config_tugraz_saml_update_interval"`

	AllowedHosts  []string       `json:"app_allowed_hosts" yaml:"app_allowed_hosts" mapstructure:"app_allowed_hosts"`
	SecureHeaders map[string]any `json:"app_default_secure_headers" yaml:"app_default_secure_headers" mapstructure:"app_default_secure_headers"`

	MailServer                   string `json:"mail_server" yaml:"mail_server" mapstructure:"mail_server"`
	MailSuppressSend             bool   `json:"mail_suppress_send" yaml:"mail_suppress_send" mapstructure:"mail_suppress_send"`
	SecurityEmailSender          string `json:"security_email_sender" yaml:"security_email_sender" mapstructure:"security_email_sender"`
	SecurityEmailSubjectRegister string `json:"security_email_subject_register" yaml:"security_email_subject_register" mapstructure:"security_email_subject_register"`

	UserProfilesExtendSecurityForms bool `json:"userprofiles_extend_security_forms" yaml:"userprofiles_extend_security_forms" mapstructure:"userprofiles_extend_security_forms"`
	UserProfilesEmailEnabled        bool `json:"userprofiles_email_enabled" yaml:"userprofiles_email_enabled" mapstructure:"userprofiles_email_enabled"`

	SSOSAMLIdPs            map[string]any `json:"sso_saml_idps" yaml:"sso_saml_idps" mapstructure:"sso_saml_idps"`
	SSOSAMLBlueprintPrefix string         `json:"sso_saml_default_blueprint_prefix" yaml:"sso_saml_default_blueprint_prefix" mapstructure:"sso_saml_default_blueprint_prefix"`
	SSOSAMLMetadataRoute   string         `json:"sso_saml_default_metadata_route" yaml:"sso_saml_default_metadata_route" mapstructure:"sso_saml_default_metadata_route"`
	SSOSAMLSSORoute        string         `json:"sso_saml_default_sso_route" yaml:"sso_saml_default_sso_route" mapstructure:"sso_saml_default_sso_route"`
	SSOSAMLACSRoute        string         `json:"sso_saml_default_acs_route" yaml:"sso_saml_default_acs_route" mapstructure:"sso_saml_default_acs_route"`
	SSOSAMLSLORoute        string         `json:"sso_saml_default_slo_route" yaml:"sso_saml_default_slo_route" mapstructure:"sso_saml_default_slo_route"`
	SSOSAMLSLSRoute        string         `json:"sso_saml_default_sls_route" yaml:"sso_saml_default_sls_route" mapstructure:"sso_saml_default_sls_route"`

	SecurityChangeable   bool `json:"security_changeable" yaml:"security_changeable" mapstructure:"security_changeable"`
	SecurityRecoverable  bool `json:"security_recoverable" yaml:"security_recoverable" mapstructure:"security_recoverable"`
	SecurityRegisterable bool `json:"security_registerable" yaml:"security_registerable" mapstructure:"security_registerable"`
	SecurityConfirmable  bool `json:"security_confirmable" yaml:"security_confirmable" mapstructure:"security_confirmable"`
	Accounts             bool `json:"accounts" yaml:"accounts" mapstructure:"accounts"`

	RecaptchaPublicKey  string `json:"recaptcha_public_key" yaml:"recaptcha_public_key" mapstructure:"recaptcha_public_key"`
	RecaptchaPrivateKey string `json:"recaptcha_private_key" yaml:"recaptcha_private_key" mapstructure:"recaptcha_private_key"`

	BabelDefaultLocale   string `json:"babel_default_locale" yaml:"babel_default_locale" mapstructure:"babel_default_locale"`
	BabelDefaultTimezone string `json:"babel_default_timezone" yaml:"babel_default_timezone" mapstructure:"babel_default_timezone"`

	DBEngine DBEngineOptions `json:"sqlalchemy_engine_options" yaml:"sqlalchemy_engine_options" mapstructure:"sqlalchemy_engine_options"`

	AllowMetadataOnlyRecords   bool `json:"rdm_allow_metadata_only_records" yaml:"rdm_allow_metadata_only_records" mapstructure:"rdm_allow_metadata_only_records"`
	AllowRestrictedRecords     bool `json:"rdm_allow_restricted_records" yaml:"rdm_allow_restricted_records" mapstructure:"rdm_allow_restricted_records"`
	AllowExternalDOIVersioning bool `json:"rdm_allow_external_doi_versioning" yaml:"rdm_allow_external_doi_versioning" mapstructure:"rdm_allow_external_doi_versioning"`
	CommunityRequiredToPublish bool `json:"rdm_community_required_to_publish" yaml:"rdm_community_required_to_publish" mapstructure:"rdm_community_required_to_publish"`
}

// DBEngineOptions sizes the connection pool of the account database.
type DBEngineOptions struct {
	PoolPrePing bool `json:"pool_pre_ping" yaml:"pool_pre_ping" mapstructure:"pool_pre_ping"`
	PoolRecycle int  `json:"pool_recycle" yaml:"pool_recycle" mapstructure:"pool_recycle"` // seconds
	PoolSize    int  `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	MaxOverflow int  `json:"max_overflow" yaml:"max_overflow" mapstructure:"max_overflow"`
}

// DefaultConfig returns the TU Graz defaults.
func DefaultConfig() *Config {
	return &Config{
		Shibboleth:        true,
		SingleIP:          []string{},
		AuthenticatedRole: DefaultAuthenticatedRole,
		Curators:          map[string]CuratorEntry{},
		CuratorTimeout:    defaultCuratorLookupTimeout,

		SAMLUpdateInterval: 24 * time.Hour,

		AllowedHosts: []string{
			"0.0.0.0",
			"localhost",
			"127.0.0.1",
			"invenio-dev01.tugraz.at",
			"invenio-test.tugraz.at",
			"repository.tugraz.at",
		},
		SecureHeaders: defaultSecureHeaders(),

		MailServer:                   "localhost",
		MailSuppressSend:             true,
		SecurityEmailSender:          "info@invenio-test.tugraz.at",
		SecurityEmailSubjectRegister: "Welcome to RDM!",

		SSOSAMLIdPs:            map[string]any{},
		SSOSAMLBlueprintPrefix: "/shibboleth",
		SSOSAMLMetadataRoute:   "/metadata/<idp>",
		SSOSAMLSSORoute:        "/login/<idp>",
		SSOSAMLACSRoute:        "/authorized/<idp>",
		SSOSAMLSLORoute:        "/slo/<idp>",
		SSOSAMLSLSRoute:        "/sls/<idp>",

		Accounts: true,

		BabelDefaultLocale:   "en",
		BabelDefaultTimezone: "Europe/Vienna",

		DBEngine: DBEngineOptions{PoolPrePing: true, PoolRecycle: 3600, PoolSize: 20, MaxOverflow: 10},

		AllowMetadataOnlyRecords:   true,
		AllowRestrictedRecords:     true,
		AllowExternalDOIVersioning: true,
	}
}

func defaultSecureHeaders() map[string]any {
	return map[string]any{
		"content_security_policy": map[string]any{
			"default-src": []any{
				"'self'",
				"fonts.googleapis.com",
				"*.gstatic.com",
				"data:",
				"'unsafe-inline'",
				"'unsafe-eval'",
				"blob:",
			},
		},
		"content_security_policy_report_only":          false,
		"content_security_policy_report_uri":           nil,
		"force_file_save":                              false,
		"force_https":                                  true,
		"force_https_permanent":                        false,
		"frame_options":                                "sameorigin",
		"frame_options_allow_from":                     nil,
		"session_cookie_http_only":                     true,
		"session_cookie_secure":                        true,
		"strict_transport_security":                    true,
		"strict_transport_security_include_subdomains": true,
		"strict_transport_security_max_age":            31556926,
		"strict_transport_security_preload":            false,
	}
}

// Flag resolves an RDM feature flag by its upper-case configuration name.
// Unknown names are false.
func (c *Config) Flag(key string) bool {
	if c == nil {
		c = DefaultConfig()
	}
	switch strings.ToUpper(key) {
	case "RDM_ALLOW_METADATA_ONLY_RECORDS":
		return c.AllowMetadataOnlyRecords
	case "RDM_ALLOW_RESTRICTED_RECORDS":
		return c.AllowRestrictedRecords
	case "RDM_ALLOW_EXTERNAL_DOI_VERSIONING":
		return c.AllowExternalDOIVersioning
	case "RDM_COMMUNITY_REQUIRED_TO_PUBLISH":
		return c.CommunityRequiredToPublish
	case "INVENIO_CONFIG_TUGRAZ_SHIBBOLETH":
		return c.Shibboleth
	}
	return false
}

func (c *Config) singleIPs() []string {
	if c == nil {
		return nil
	}
	return c.SingleIP
}

func (c *Config) ipNetwork() string {
	if c == nil {
		return ""
	}
	return c.IPNetwork
}

func (c *Config) curators() map[string]CuratorEntry {
	if c == nil {
		return nil
	}
	return c.Curators
}

func (c *Config) curatorLookupTimeout() time.Duration {
	if c == nil || c.CuratorTimeout <= 0 {
		return defaultCuratorLookupTimeout
	}
	return c.CuratorTimeout
}

func (c *Config) authenticatedRole() string {
	if c == nil || c.AuthenticatedRole == "" {
		return DefaultAuthenticatedRole
	}
	return c.AuthenticatedRole
}

// Validate reports every malformed IP literal, network and curator entry.
// Rules tolerate these at runtime by failing closed; Validate is for
// catching them before deployment.
func (c *Config) Validate() error {
	var errs []error
	for _, ip := range c.SingleIP {
		if _, ok := utils.ParseAddr(ip); !ok {
			errs = append(errs, fmt.Errorf("invenio_config_tugraz_single_ip: malformed ip %q", ip))
		}
	}
	if c.IPNetwork != "" {
		if _, ok := utils.ParsePrefix(c.IPNetwork); !ok {
			errs = append(errs, fmt.Errorf("invenio_config_tugraz_ip_network: malformed network %q", c.IPNetwork))
		}
	}
	for _, key := range sortedKeys(c.Curators) {
		cur := c.Curators[key]
		if cur.Email == "" || cur.Role == "" {
			errs = append(errs, fmt.Errorf("tugraz_curators.%s: email and role are required", key))
		}
	}
	if c.DBEngine.PoolSize < 0 || c.DBEngine.MaxOverflow < 0 {
		errs = append(errs, errors.New("sqlalchemy_engine_options: pool sizes must not be negative"))
	}
	return errors.Join(errs...)
}

// ConfigLoader reads configuration files. Values absent from a file keep
// their defaults.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return cfg, nil
}

// Load picks the decoder from the file extension of name.
func (l *ConfigLoader) Load(name string, data []byte) (*Config, error) {
	switch {
	case strings.HasSuffix(name, ".json"):
		return l.LoadJSON(data)
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return l.LoadYAML(data)
	}
	return nil, fmt.Errorf("unsupported config format: %s", name)
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
