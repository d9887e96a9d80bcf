package kvfs

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/fsdelegate/internal/bytesize"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// ProxyUserRule lists who a real user may impersonate. "*" matches anyone.
type ProxyUserRule struct {
	Users  []string `mapstructure:"users" yaml:"users,omitempty" json:"users,omitempty"`
	Groups []string `mapstructure:"groups" yaml:"groups,omitempty" json:"groups,omitempty"`
}

// Options are the settings shared by every key-value backend. Backends
// embed them with `mapstructure:",squash"`.
type Options struct {
	// Superuser bypasses permission checks, as does any member of Supergroup.
	Superuser  string `mapstructure:"superuser"`
	Supergroup string `mapstructure:"supergroup"`

	// UMask is the octal mask applied to new entries, e.g. "022". Quote it
	// in YAML so it is not read as a decimal number.
	UMask string `mapstructure:"umask"`

	// HomePrefix is the parent of every home directory.
	HomePrefix string `mapstructure:"home_prefix"`

	// AutoCreateHome provisions the acting user's home directory when a
	// handle is opened.
	AutoCreateHome bool `mapstructure:"auto_create_home"`

	Capacity    bytesize.ByteSize `mapstructure:"capacity"`
	Replication int16             `mapstructure:"replication"`
	BlockSize   bytesize.ByteSize `mapstructure:"block_size"`

	DisablePermissions bool `mapstructure:"disable_permissions"`

	// AllowedAuthMethods restricts the authentication methods callers may
	// connect with. Empty allows all.
	AllowedAuthMethods []string `mapstructure:"allowed_auth_methods"`

	// ProxyUsers maps a real user to the identities it may impersonate.
	// When nil, impersonation is not restricted.
	ProxyUsers map[string]ProxyUserRule `mapstructure:"proxy_users"`

	umask   uint16
	methods []ugi.AuthMethod
}

// DefaultOptions returns the options a volume uses when none are given.
func DefaultOptions() Options {
	return Options{
		Superuser:   "hdfs",
		Supergroup:  "supergroup",
		UMask:       "022",
		HomePrefix:  "/user",
		Capacity:    bytesize.TiB,
		Replication: 3,
		BlockSize:   128 * bytesize.MiB,
	}
}

// Common returns the shared options, letting backend option structs satisfy
// Backend by embedding Options.
func (o *Options) Common() *Options {
	return o
}

func (o *Options) normalize() error {
	mask, err := strconv.ParseUint(o.UMask, 8, 16)
	if err != nil || mask > 0o777 {
		return fmt.Errorf("umask %q: must be an octal value up to 777", o.UMask)
	}
	o.umask = uint16(mask)

	if o.Replication <= 0 {
		return fmt.Errorf("replication must be positive, got %d", o.Replication)
	}
	if o.Capacity == 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if o.BlockSize == 0 {
		return fmt.Errorf("block_size must be positive")
	}
	if o.Superuser == "" {
		return fmt.Errorf("superuser is required")
	}

	o.HomePrefix = fs.Clean(o.HomePrefix)

	o.methods = o.methods[:0]
	for _, name := range o.AllowedAuthMethods {
		m, err := ugi.ParseAuthMethod(name)
		if err != nil {
			return err
		}
		o.methods = append(o.methods, m)
	}
	return nil
}

// DecodeOptions decodes raw filesystem options into out, rejecting unknown
// keys. Byte sizes accept "128Mi"-style strings and durations "30s"-style.
func DecodeOptions(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", fs.ErrInvalidOptions, err)
	}
	return nil
}
