package tugraz

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tu-graz-library/invenio-config-tugraz/logger"
)

const (
	// ExtensionName is the key the extension registers itself under.
	ExtensionName = "invenio-config-tugraz"
	// BlueprintName names the blueprint carrying the TU Graz templates.
	BlueprintName = "invenio_config_tugraz"

	SecurityBlueprintName = "security"
	SecurityPriority      = 0
	// BlueprintPriority orders the TU Graz blueprint ahead of security so
	// its templates win the lookup.
	BlueprintPriority = 100
)

var ErrBlueprintExists = errors.New("blueprint already registered")

// Blueprint is a registered template/route bundle of the host application.
type Blueprint struct {
	Name      string
	URLPrefix string
	Priority  int
}

// BlueprintRegistry orders blueprints by priority for template lookup.
type BlueprintRegistry struct {
	mu         sync.RWMutex
	blueprints map[string]Blueprint
}

func NewBlueprintRegistry() *BlueprintRegistry {
	return &BlueprintRegistry{blueprints: make(map[string]Blueprint)}
}

func (r *BlueprintRegistry) Register(bp Blueprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blueprints[bp.Name]; ok {
		return fmt.Errorf("%w: %s", ErrBlueprintExists, bp.Name)
	}
	r.blueprints[bp.Name] = bp
	return nil
}

func (r *BlueprintRegistry) Lookup(name string) (Blueprint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.blueprints[name]
	return bp, ok
}

// Ordered returns the blueprints by descending priority, ties by name.
func (r *BlueprintRegistry) Ordered() []Blueprint {
	r.mu.RLock()
	out := make([]Blueprint, 0, len(r.blueprints))
	for _, bp := range r.blueprints {
		out = append(out, bp)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// App is the part of the host application the extension touches.
type App struct {
	Config     *viper.Viper
	Extensions map[string]any
	Blueprints *BlueprintRegistry
}

func NewApp(v *viper.Viper) *App {
	if v == nil {
		v = viper.New()
	}
	return &App{
		Config:     v,
		Extensions: make(map[string]any),
		Blueprints: NewBlueprintRegistry(),
	}
}

// Extension merges the TU Graz defaults into a host application and builds
// the record policy from the resulting configuration.
type Extension struct {
	log      logger.Logger
	accounts AccountStore

	config *Config
	policy *PolicyTable
}

type ExtensionOption func(*Extension)

func WithExtensionLogger(l logger.Logger) ExtensionOption {
	return func(e *Extension) { e.log = logger.OrNull(l) }
}

// WithExtensionAccounts enables the curator rule of the record policy.
func WithExtensionAccounts(accounts AccountStore) ExtensionOption {
	return func(e *Extension) { e.accounts = accounts }
}

// NewExtension creates the extension and, when app is non-nil, initializes
// it right away.
func NewExtension(app *App, opts ...ExtensionOption) (*Extension, error) {
	e := &Extension{log: logger.NewNullLogger()}
	for _, opt := range opts {
		opt(e)
	}
	if app != nil {
		if err := e.InitApp(app); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Extension) InitApp(app *App) error {
	if app.Config == nil {
		app.Config = viper.New()
	}
	if app.Extensions == nil {
		app.Extensions = make(map[string]any)
	}
	if app.Blueprints == nil {
		app.Blueprints = NewBlueprintRegistry()
	}
	if err := e.InitConfig(app.Config); err != nil {
		return err
	}
	cfg, err := ConfigFromViper(app.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		// rules fail closed on bad values, so startup continues
		e.log.Error("invalid tugraz configuration", "error", err)
	}
	opts := []PolicyOption{WithPolicyLogger(e.log)}
	if e.accounts != nil {
		opts = append(opts, WithCuratorAccounts(e.accounts))
	}
	policy, err := TUGrazRDMRecordPolicy(cfg, opts...)
	if err != nil {
		return fmt.Errorf("build record policy: %w", err)
	}
	err = app.Blueprints.Register(Blueprint{Name: BlueprintName, Priority: BlueprintPriority})
	if err != nil && !errors.Is(err, ErrBlueprintExists) {
		return err
	}
	e.config, e.policy = cfg, policy
	app.Extensions[ExtensionName] = e
	e.log.Info("extension initialized", "actions", len(policy.Actions()), "curators", len(cfg.Curators))
	return nil
}

// InitConfig registers every default on v. Values the host already set
// keep precedence.
func (e *Extension) InitConfig(v *viper.Viper) error {
	settings, err := DefaultConfig().settings()
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(settings) {
		v.SetDefault(key, settings[key])
	}
	return nil
}

// Config returns the snapshot taken by InitApp.
func (e *Extension) Config() *Config { return e.config }

// Policy returns the record policy built by InitApp.
func (e *Extension) Policy() *PolicyTable { return e.policy }

// ConfigFromViper takes the frozen configuration snapshot from v.
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal tugraz config: %w", err)
	}
	return cfg, nil
}

// settings flattens c into its top-level configuration keys.
func (c *Config) settings() (map[string]any, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}
