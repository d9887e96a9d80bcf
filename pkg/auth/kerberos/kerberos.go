package kerberos

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/marmos91/fsdelegate/internal/logger"
)

// Config configures the Kerberos login identity.
type Config struct {
	// Keytab is the path of the keytab holding the login principal's keys.
	Keytab string `mapstructure:"keytab" yaml:"keytab" json:"keytab,omitempty"`

	// Principal is the login principal, e.g. "hue/gateway.example.com@EXAMPLE.COM".
	Principal string `mapstructure:"principal" yaml:"principal" json:"principal,omitempty"`

	// Krb5Conf is the krb5.conf path. Defaults to /etc/krb5.conf.
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf" json:"krb5_conf,omitempty"`

	// Login performs an AS exchange with the KDC when the provider starts.
	// When false the keytab is only checked to hold the principal.
	Login bool `mapstructure:"login" yaml:"login" json:"login,omitempty"`

	// ReloadKeytab polls the keytab for rotation.
	ReloadKeytab bool `mapstructure:"reload_keytab" yaml:"reload_keytab" json:"reload_keytab,omitempty"`
}

// Provider holds the loaded keytab, krb5.conf and login principal.
//
// Thread Safety: All methods are safe for concurrent use. The keytab can be
// hot-reloaded at runtime via ReloadKeytab.
type Provider struct {
	keytab        *keytab.Keytab
	krb5Conf      *krb5config.Config
	principal     Principal
	keytabPath    string
	keytabManager *KeytabManager
	client        *client.Client
	mu            sync.RWMutex
}

// NewProvider loads the keytab and krb5.conf described by cfg.
//
// Environment variables take precedence over configuration values:
//   - FSDELEGATE_KERBEROS_KEYTAB overrides Keytab
//   - FSDELEGATE_KERBEROS_PRINCIPAL overrides Principal
//   - FSDELEGATE_KERBEROS_KRB5CONF overrides Krb5Conf
func NewProvider(cfg Config) (*Provider, error) {
	keytabPath := resolveKeytabPath(cfg.Keytab)
	if keytabPath == "" {
		return nil, fmt.Errorf("kerberos keytab not configured (set security.kerberos.keytab or FSDELEGATE_KERBEROS_KEYTAB)")
	}

	principalName := resolvePrincipal(cfg.Principal)
	if principalName == "" {
		return nil, fmt.Errorf("kerberos principal not configured (set security.kerberos.principal or FSDELEGATE_KERBEROS_PRINCIPAL)")
	}

	krb5ConfPath := resolveKrb5ConfPath(cfg.Krb5Conf)

	kt, err := loadKeytab(keytabPath)
	if err != nil {
		return nil, fmt.Errorf("load keytab %s: %w", keytabPath, err)
	}

	krbCfg, err := loadKrb5Conf(krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("load krb5.conf %s: %w", krb5ConfPath, err)
	}

	principal, err := ParsePrincipal(principalName)
	if err != nil {
		return nil, err
	}
	if principal.Realm == "" {
		principal.Realm = krbCfg.LibDefaults.DefaultRealm
	}

	if !hasPrincipal(kt, principal) {
		return nil, fmt.Errorf("keytab %s has no entry for %s", keytabPath, principal)
	}

	p := &Provider{
		keytab:     kt,
		krb5Conf:   krbCfg,
		principal:  principal,
		keytabPath: keytabPath,
	}

	if cfg.Login {
		if err := p.login(); err != nil {
			return nil, err
		}
	}

	if cfg.ReloadKeytab {
		km := NewKeytabManager(keytabPath, p)
		if err := km.Start(); err != nil {
			logger.Warn("Keytab hot-reload failed to start, continuing without it",
				"path", keytabPath, logger.Err(err))
		}
		p.keytabManager = km
	}

	return p, nil
}

func (p *Provider) login() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cl := client.NewWithKeytab(p.principal.Name(), p.principal.Realm, p.keytab, p.krb5Conf,
		client.DisablePAFXFAST(true))
	if err := cl.Login(); err != nil {
		return fmt.Errorf("kerberos login as %s: %w", p.principal, err)
	}

	if p.client != nil {
		p.client.Destroy()
	}
	p.client = cl

	logger.Info("Kerberos login succeeded", logger.KeyPrincipal, p.principal.String())
	return nil
}

// Principal returns the login principal.
func (p *Provider) Principal() Principal {
	return p.principal
}

// ShortName maps the login principal to its short user name.
func (p *Provider) ShortName() (string, error) {
	return p.principal.ShortName(p.DefaultRealm())
}

// DefaultRealm returns the default realm from krb5.conf.
func (p *Provider) DefaultRealm() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.krb5Conf.LibDefaults.DefaultRealm
}

// Keytab returns the current keytab (thread-safe read).
func (p *Provider) Keytab() *keytab.Keytab {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.keytab
}

// Krb5Config returns the loaded Kerberos configuration.
func (p *Provider) Krb5Config() *krb5config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.krb5Conf
}

// LoggedIn reports whether a KDC login is active.
func (p *Provider) LoggedIn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}

// ReloadKeytab re-reads the keytab file and atomically swaps it. When a KDC
// login is active it is renewed with the new keys.
//
// Returns an error if the new keytab cannot be loaded or no longer holds the
// login principal; the old keytab then remains active.
func (p *Provider) ReloadKeytab() error {
	kt, err := loadKeytab(p.keytabPath)
	if err != nil {
		return fmt.Errorf("reload keytab %s: %w", p.keytabPath, err)
	}
	if !hasPrincipal(kt, p.principal) {
		return fmt.Errorf("reloaded keytab %s has no entry for %s", p.keytabPath, p.principal)
	}

	p.mu.Lock()
	p.keytab = kt
	relogin := p.client != nil
	p.mu.Unlock()

	if relogin {
		return p.login()
	}
	return nil
}

// Close stops keytab polling and destroys the KDC session. Safe to call
// multiple times.
func (p *Provider) Close() error {
	if p.keytabManager != nil {
		p.keytabManager.Stop()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Destroy()
		p.client = nil
	}
	return nil
}

func hasPrincipal(kt *keytab.Keytab, pr Principal) bool {
	for _, e := range kt.Entries {
		if e.Principal.Realm != pr.Realm {
			continue
		}
		if strings.Join(e.Principal.Components, "/") == pr.Name() {
			return true
		}
	}
	return false
}

func loadKeytab(path string) (*keytab.Keytab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keytab file: %w", err)
	}

	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse keytab: %w", err)
	}

	return kt, nil
}

func loadKrb5Conf(path string) (*krb5config.Config, error) {
	cfg, err := krb5config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parse krb5.conf: %w", err)
	}
	return cfg, nil
}
