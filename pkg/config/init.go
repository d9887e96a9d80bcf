package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the commented configuration written by `config init`.
// The JWT secret is substituted at generation time.
const configTemplate = `# fsdelegate Configuration File
#
# Every setting can be overridden with an FSDELEGATE_* environment variable,
# e.g. FSDELEGATE_LOGGING_LEVEL=DEBUG.

logging:
  # DEBUG, INFO, WARN or ERROR
  level: "INFO"
  # text or json
  format: "text"
  # stdout, stderr or a file path (file logs are rotated)
  output: "stdout"

telemetry:
  enabled: false
  endpoint: "localhost:4317"
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: "http://localhost:4040"

metrics:
  enabled: false
  path: "/metrics"

api:
  port: 8080
  read_timeout: 30s
  write_timeout: 60s
  idle_timeout: 120s
  request_timeout: 60s
  # Accept "Authorization: Pseudo <user>" and ?user.name=<user> without
  # verification. Only enable behind a trusted gateway.
  allow_pseudo: false
  jwt:
    secret: "%s"
    issuer: "fsdelegate"
    ttl: 1h

shutdown_timeout: 30s

security:
  # simple or kerberos
  authentication: "simple"
  group_mapping:
    # os or static
    type: "os"
  # kerberos:
  #   principal: "hue/gateway.example.com@EXAMPLE.COM"
  #   keytab: "/etc/security/keytabs/hue.service.keytab"
  #   krb5_conf: "/etc/krb5.conf"

# Identity end users are impersonated through. Without proxyuser the
# process login user is the proxy.
# auth_params:
#   proxyuser: "hue"
#   auth: "SIMPLE"

filesystem:
  # memory, badger or s3
  type: "memory"
  name: "default"
  options:
    auto_create_home: true
    # superuser: "hdfs"
    # supergroup: "supergroup"
    # umask: "022"
    # proxy_users:
    #   hue:
    #     users: ["*"]
  trash:
    # How long trashed entries are kept. 0 disables the trash.
    interval: 0s

retry:
  max_attempts: 3
  backoff: 1s
`

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path with a freshly
// generated JWT secret.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(configTemplate, secret)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateSecret returns 32 random bytes hex-encoded (64 characters).
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
