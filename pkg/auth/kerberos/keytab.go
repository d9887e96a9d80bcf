package kerberos

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/marmos91/fsdelegate/internal/logger"
)

const keytabPollInterval = 60 * time.Second

// KeytabManager polls a keytab file and reloads the provider when its
// modification time changes. Polling is used because key management tools
// replace keytabs by rename, which file watchers follow poorly.
type KeytabManager struct {
	path     string
	provider *Provider
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	lastMod  time.Time
}

// NewKeytabManager creates a keytab poller (not yet started).
func NewKeytabManager(path string, provider *Provider) *KeytabManager {
	return &KeytabManager{
		path:     path,
		provider: provider,
		interval: keytabPollInterval,
		stopCh:   make(chan struct{}),
	}
}

// Start records the keytab's modification time and begins polling.
func (km *KeytabManager) Start() error {
	km.mu.Lock()
	defer km.mu.Unlock()

	info, err := os.Stat(km.path)
	if err != nil {
		return fmt.Errorf("keytab file not accessible: %w", err)
	}
	km.lastMod = info.ModTime()

	go km.pollLoop()

	logger.Info("Keytab hot-reload started",
		logger.KeyPath, km.path,
		"poll_interval", km.interval.String(),
	)
	return nil
}

// Stop ends polling. Safe to call multiple times or on a manager that was
// never started.
func (km *KeytabManager) Stop() {
	km.stopOnce.Do(func() { close(km.stopCh) })
}

func (km *KeytabManager) pollLoop() {
	ticker := time.NewTicker(km.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			km.checkAndReload()
		case <-km.stopCh:
			return
		}
	}
}

// checkAndReload reloads the provider when the file changed since the last
// successful load. It reports whether a reload happened.
func (km *KeytabManager) checkAndReload() bool {
	km.mu.Lock()
	defer km.mu.Unlock()

	info, err := os.Stat(km.path)
	if err != nil {
		logger.Error("Keytab file stat failed", logger.KeyPath, km.path, logger.Err(err))
		return false
	}

	if info.ModTime().Equal(km.lastMod) {
		return false
	}

	if err := km.provider.ReloadKeytab(); err != nil {
		logger.Error("Keytab reload failed", logger.KeyPath, km.path, logger.Err(err))
		return false
	}

	km.lastMod = info.ModTime()
	logger.Info("Keytab reloaded", logger.KeyPath, km.path)
	return true
}

func resolveKeytabPath(configPath string) string {
	if envPath := os.Getenv("FSDELEGATE_KERBEROS_KEYTAB"); envPath != "" {
		return envPath
	}
	return configPath
}

func resolvePrincipal(configPrincipal string) string {
	if env := os.Getenv("FSDELEGATE_KERBEROS_PRINCIPAL"); env != "" {
		return env
	}
	return configPrincipal
}

// resolveKrb5ConfPath prefers FSDELEGATE_KERBEROS_KRB5CONF, then the
// configured path, then /etc/krb5.conf.
func resolveKrb5ConfPath(configPath string) string {
	if envPath := os.Getenv("FSDELEGATE_KERBEROS_KRB5CONF"); envPath != "" {
		return envPath
	}
	if configPath != "" {
		return configPath
	}
	return "/etc/krb5.conf"
}
