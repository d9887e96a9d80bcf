package delegate

import (
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// Keys read from Config.AuthParams.
const (
	// AuthParamProxyUser names the identity end users are proxied through.
	// When absent the process login user is used.
	AuthParamProxyUser = "proxyuser"

	// AuthParamAuth is the authentication method of the proxy identity
	// (SIMPLE, KERBEROS, TOKEN, ...). Defaults to SIMPLE.
	AuthParamAuth = "auth"
)

// Config is everything a Session needs to connect.
type Config struct {
	// Security is installed process-wide by the first session.
	Security ugi.Config `mapstructure:"security" yaml:"security" json:"security"`

	AuthParams map[string]string `mapstructure:"auth_params" yaml:"auth_params,omitempty" json:"auth_params,omitempty"`

	FileSystem fs.Config `mapstructure:"filesystem" yaml:"filesystem" json:"filesystem"`
}
