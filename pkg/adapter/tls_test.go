package adapter

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSigned returns a PEM certificate and key.
func selfSigned(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "leapgrid-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return certPEM, keyPEM
}

func TestInlineTLSMaterial(t *testing.T) {
	certPEM, keyPEM := selfSigned(t)
	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(caPath, []byte(certPEM), 0o600))
	require.NoError(t, os.WriteFile(keyPath, []byte(keyPEM), 0o600))

	in := &core.SSLConfig{CAFile: caPath, KeyFile: keyPath, Cert: "inline-cert"}
	out, err := InlineTLSMaterial(in)
	require.NoError(t, err)

	assert.Equal(t, certPEM, out.CA)
	assert.Equal(t, keyPEM, out.Key)
	assert.Equal(t, "inline-cert", out.Cert, "inline values are kept")
	assert.Empty(t, in.CA, "input is not modified")

	out, err = InlineTLSMaterial(nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestTLSConfig(t *testing.T) {
	certPEM, keyPEM := selfSigned(t)

	t.Run("nil and disabled", func(t *testing.T) {
		cfg, err := TLSConfig(nil, "db")
		assert.NoError(t, err)
		assert.Nil(t, cfg)

		cfg, err = TLSConfig(&core.SSLConfig{Mode: SSLDisable, CA: certPEM}, "db")
		assert.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("require without CA skips verification", func(t *testing.T) {
		cfg, err := TLSConfig(&core.SSLConfig{Mode: SSLRequire}, "db.internal")
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
		assert.Equal(t, "db.internal", cfg.ServerName)
	})

	t.Run("verify-full with CA and client pair", func(t *testing.T) {
		cfg, err := TLSConfig(&core.SSLConfig{
			Mode:       SSLVerifyFull,
			CA:         certPEM,
			Cert:       certPEM,
			Key:        keyPEM,
			ServerName: "override",
		}, "db.internal")
		require.NoError(t, err)
		assert.False(t, cfg.InsecureSkipVerify)
		assert.NotNil(t, cfg.RootCAs)
		assert.Len(t, cfg.Certificates, 1)
		assert.Equal(t, "override", cfg.ServerName)
	})

	t.Run("verify-ca checks the chain only", func(t *testing.T) {
		cfg, err := TLSConfig(&core.SSLConfig{Mode: SSLVerifyCA, CA: certPEM}, "db")
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
		assert.NotNil(t, cfg.VerifyPeerCertificate)
	})

	t.Run("bad CA", func(t *testing.T) {
		_, err := TLSConfig(&core.SSLConfig{CA: "not pem"}, "db")
		var cfgErr *core.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "ssl.ca", cfgErr.Field)
	})

	t.Run("cert without key", func(t *testing.T) {
		_, err := TLSConfig(&core.SSLConfig{Cert: certPEM}, "db")
		var cfgErr *core.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "ssl", cfgErr.Field)
	})
}
