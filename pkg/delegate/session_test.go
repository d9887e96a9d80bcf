package delegate_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
	_ "github.com/marmos91/fsdelegate/pkg/fs/kvfs/memstore"
	"github.com/marmos91/fsdelegate/pkg/permission"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// The security configuration is process-wide and write-once, so it is
// installed here before any session tries to.
func TestMain(m *testing.M) {
	err := ugi.SetConfiguration(ugi.Config{
		GroupMapping: ugi.GroupMappingConfig{
			Type: "static",
			Static: map[string][]string{
				"alice": {"alice", "analysts"},
				"bob":   {"bob", "staff"},
				"hue":   {"hue"},
			},
		},
	})
	if err != nil {
		panic(err)
	}

	fs.Register("refusing", func(ctx context.Context, cfg fs.Config) (fs.FileSystem, error) {
		cfg.Type = "memory"
		inner, err := fs.Get(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return refusingMkdirs{inner}, nil
	})

	os.Exit(m.Run())
}

// refusingMkdirs reports failure from Mkdirs without an error.
type refusingMkdirs struct {
	fs.FileSystem
}

func (refusingMkdirs) Mkdirs(context.Context, string, *permission.Permission) (bool, error) {
	return false, nil
}

type config struct {
	fsType  string
	options map[string]any
	params  map[string]string
	trash   fs.TrashConfig
	opts    []delegate.Option
}

func volumeName(t *testing.T) string {
	return strings.NewReplacer("/", "-", " ", "-").Replace(t.Name())
}

func newConfig(t *testing.T, c config) delegate.Config {
	if c.fsType == "" {
		c.fsType = "memory"
	}
	if c.options == nil {
		c.options = map[string]any{"auto_create_home": true, "replication": 1}
	}
	if c.params == nil {
		c.params = map[string]string{delegate.AuthParamProxyUser: "hue"}
	}
	return delegate.Config{
		AuthParams: c.params,
		FileSystem: fs.Config{
			Type:    c.fsType,
			Name:    volumeName(t),
			Options: c.options,
			Trash:   c.trash,
		},
	}
}

func newSession(t *testing.T, username string, c config) *delegate.Session {
	t.Helper()
	s, err := delegate.New(context.Background(), newConfig(t, c), username, c.opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSession(t *testing.T) {
	s := newSession(t, "alice", config{})

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "alice", s.User().ShortUserName())
	assert.Equal(t, []string{"alice", "analysts"}, s.User().GroupNames())
	assert.Equal(t, ugi.Proxy, s.User().AuthMethod())
	require.NotNil(t, s.User().RealUser())
	assert.Equal(t, "hue", s.User().RealUser().UserName())
	assert.Equal(t, ugi.Simple, s.User().RealAuthMethod())
	assert.Equal(t, "memory://"+volumeName(t), s.URI())

	home, err := s.HomeDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory://"+volumeName(t)+"/user/alice", home)
}

func TestNewAuthMethodFromParams(t *testing.T) {
	s := newSession(t, "alice", config{params: map[string]string{
		delegate.AuthParamProxyUser: "hue",
		delegate.AuthParamAuth:      "kerberos",
	}})
	assert.Equal(t, ugi.Kerberos, s.User().RealAuthMethod())
}

func TestNewLoginUserAsProxy(t *testing.T) {
	t.Setenv(ugi.UserNameEnv, "hue")

	s := newSession(t, "alice", config{params: map[string]string{}})
	require.NotNil(t, s.User().RealUser())
	assert.Equal(t, ugi.Simple, s.User().RealAuthMethod())
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		c    config
		user string
		is   error
	}{
		{
			name: "unknown auth method",
			c:    config{params: map[string]string{delegate.AuthParamProxyUser: "hue", delegate.AuthParamAuth: "digest"}},
			user: "alice",
			is:   ugi.ErrUnknownAuthMethod,
		},
		{
			name: "unknown filesystem type",
			c:    config{fsType: "hdfs"},
			user: "alice",
			is:   fs.ErrUnsupportedType,
		},
		{
			name: "undecodable options",
			c:    config{options: map[string]any{"colour": "blue"}},
			user: "alice",
			is:   fs.ErrInvalidOptions,
		},
		{
			name: "empty proxy user",
			c:    config{params: map[string]string{delegate.AuthParamProxyUser: ""}},
			user: "alice",
		},
		{
			name: "empty username",
			user: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := delegate.New(context.Background(), newConfig(t, tt.c), tt.user)

			var cfgErr *delegate.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestNewConnectionError(t *testing.T) {
	_, err := delegate.New(context.Background(), newConfig(t, config{
		options: map[string]any{"allowed_auth_methods": []string{"kerberos"}},
	}), "alice")

	var connErr *delegate.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "memory://"+volumeName(t), connErr.URI)
	assert.True(t, fs.IsPermissionDenied(err))
	assert.Contains(t, err.Error(), "SIMPLE authentication is not enabled")
}

func TestSessionsShareVolume(t *testing.T) {
	alice := newSession(t, "alice", config{})
	bob := newSession(t, "bob", config{})
	ctx := context.Background()

	w, err := alice.Create(ctx, "/user/alice/shared.txt", false)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	st, err := bob.GetFileStatus(ctx, "/user/alice/shared.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", st.Owner)
	assert.Equal(t, int64(5), st.Length)
}
