package kerberos

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKrb5Conf = `[libdefaults]
  default_realm = EXAMPLE.COM

[realms]
  EXAMPLE.COM = {
    kdc = kdc.example.com:88
  }
`

// writeKeytab writes a keytab holding principal@EXAMPLE.COM with the given KVNO.
func writeKeytab(t *testing.T, path, principal string, kvno uint8) {
	t.Helper()

	kt := keytab.New()
	require.NoError(t, kt.AddEntry(principal, "EXAMPLE.COM", "test-password", time.Now(), kvno, 17))

	data, err := kt.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
}

func writeKrb5Conf(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "krb5.conf")
	require.NoError(t, os.WriteFile(path, []byte(testKrb5Conf), 0644))
	return path
}

func clearKerberosEnv(t *testing.T) {
	t.Setenv("FSDELEGATE_KERBEROS_KEYTAB", "")
	t.Setenv("FSDELEGATE_KERBEROS_PRINCIPAL", "")
	t.Setenv("FSDELEGATE_KERBEROS_KRB5CONF", "")
}

// ============================================================================
// Path resolution
// ============================================================================

func TestResolveOverrides(t *testing.T) {
	t.Run("EnvWins", func(t *testing.T) {
		t.Setenv("FSDELEGATE_KERBEROS_KEYTAB", "/env/keytab")
		t.Setenv("FSDELEGATE_KERBEROS_PRINCIPAL", "hue@ENV.COM")
		t.Setenv("FSDELEGATE_KERBEROS_KRB5CONF", "/env/krb5.conf")

		assert.Equal(t, "/env/keytab", resolveKeytabPath("/cfg/keytab"))
		assert.Equal(t, "hue@ENV.COM", resolvePrincipal("hue@CFG.COM"))
		assert.Equal(t, "/env/krb5.conf", resolveKrb5ConfPath("/cfg/krb5.conf"))
	})

	t.Run("ConfigFallback", func(t *testing.T) {
		clearKerberosEnv(t)

		assert.Equal(t, "/cfg/keytab", resolveKeytabPath("/cfg/keytab"))
		assert.Equal(t, "hue@CFG.COM", resolvePrincipal("hue@CFG.COM"))
		assert.Equal(t, "/cfg/krb5.conf", resolveKrb5ConfPath("/cfg/krb5.conf"))
		assert.Equal(t, "/etc/krb5.conf", resolveKrb5ConfPath(""))
	})
}

// ============================================================================
// Provider
// ============================================================================

func TestNewProvider(t *testing.T) {
	clearKerberosEnv(t)
	dir := t.TempDir()
	ktPath := filepath.Join(dir, "hue.keytab")
	writeKeytab(t, ktPath, "hue/gateway.example.com", 1)
	confPath := writeKrb5Conf(t, dir)

	t.Run("LoadsPrincipalFromKeytab", func(t *testing.T) {
		p, err := NewProvider(Config{
			Keytab:    ktPath,
			Principal: "hue/gateway.example.com@EXAMPLE.COM",
			Krb5Conf:  confPath,
		})
		require.NoError(t, err)
		defer p.Close()

		short, err := p.ShortName()
		require.NoError(t, err)
		assert.Equal(t, "hue", short)
		assert.Equal(t, "EXAMPLE.COM", p.DefaultRealm())
		assert.False(t, p.LoggedIn())
	})

	t.Run("RealmDefaultsFromKrb5Conf", func(t *testing.T) {
		p, err := NewProvider(Config{Keytab: ktPath, Principal: "hue/gateway.example.com", Krb5Conf: confPath})
		require.NoError(t, err)
		assert.Equal(t, "EXAMPLE.COM", p.Principal().Realm)
	})

	t.Run("PrincipalMissingFromKeytab", func(t *testing.T) {
		_, err := NewProvider(Config{Keytab: ktPath, Principal: "oozie@EXAMPLE.COM", Krb5Conf: confPath})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no entry for oozie@EXAMPLE.COM")
	})

	t.Run("MissingKeytab", func(t *testing.T) {
		_, err := NewProvider(Config{Principal: "hue@EXAMPLE.COM", Krb5Conf: confPath})
		require.Error(t, err)
	})

	t.Run("UnreadableKeytab", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.keytab")
		require.NoError(t, os.WriteFile(bad, []byte("not a keytab"), 0600))

		_, err := NewProvider(Config{Keytab: bad, Principal: "hue@EXAMPLE.COM", Krb5Conf: confPath})
		require.Error(t, err)
	})
}

func TestReloadKeytab(t *testing.T) {
	clearKerberosEnv(t)
	dir := t.TempDir()
	ktPath := filepath.Join(dir, "hue.keytab")
	writeKeytab(t, ktPath, "hue", 1)

	p, err := NewProvider(Config{Keytab: ktPath, Principal: "hue@EXAMPLE.COM", Krb5Conf: writeKrb5Conf(t, dir)})
	require.NoError(t, err)
	defer p.Close()

	t.Run("SwapsKeytab", func(t *testing.T) {
		old := p.Keytab()
		writeKeytab(t, ktPath, "hue", 2)

		require.NoError(t, p.ReloadKeytab())
		assert.NotSame(t, old, p.Keytab())
	})

	t.Run("KeepsOldOnFailure", func(t *testing.T) {
		old := p.Keytab()
		require.NoError(t, os.WriteFile(ktPath, []byte("invalid keytab data"), 0600))

		require.Error(t, p.ReloadKeytab())
		assert.Same(t, old, p.Keytab())
	})

	t.Run("RejectsKeytabWithoutPrincipal", func(t *testing.T) {
		old := p.Keytab()
		writeKeytab(t, ktPath, "oozie", 3)

		require.Error(t, p.ReloadKeytab())
		assert.Same(t, old, p.Keytab())
	})
}

func TestKeytabManager(t *testing.T) {
	clearKerberosEnv(t)
	dir := t.TempDir()
	ktPath := filepath.Join(dir, "hue.keytab")
	writeKeytab(t, ktPath, "hue", 1)

	p, err := NewProvider(Config{Keytab: ktPath, Principal: "hue@EXAMPLE.COM", Krb5Conf: writeKrb5Conf(t, dir)})
	require.NoError(t, err)

	km := NewKeytabManager(ktPath, p)
	km.interval = time.Hour
	require.NoError(t, km.Start())
	defer km.Stop()

	assert.False(t, km.checkAndReload(), "unchanged file must not reload")

	writeKeytab(t, ktPath, "hue", 2)
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(ktPath, future, future))

	assert.True(t, km.checkAndReload())

	km.Stop()
	km.Stop()
}

func TestKeytabManagerStartFailsForMissingFile(t *testing.T) {
	km := NewKeytabManager("/nonexistent", &Provider{})
	require.Error(t, km.Start())
}
