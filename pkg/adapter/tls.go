package adapter

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// SSL modes understood by TLSConfig.
const (
	SSLDisable    = "disable"
	SSLRequire    = "require"
	SSLVerifyCA   = "verify-ca"
	SSLVerifyFull = "verify-full"
)

// InlineTLSMaterial returns a copy of ssl with every *_file path read from
// disk into the matching inline PEM field. Inline values already present win.
func InlineTLSMaterial(ssl *core.SSLConfig) (*core.SSLConfig, error) {
	if ssl == nil {
		return nil, nil
	}
	out := *ssl

	files := []struct {
		field string
		path  string
		dst   *string
	}{
		{"ssl.ca_file", ssl.CAFile, &out.CA},
		{"ssl.cert_file", ssl.CertFile, &out.Cert},
		{"ssl.key_file", ssl.KeyFile, &out.Key},
	}
	for _, f := range files {
		if f.path == "" || *f.dst != "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, core.ErrConfiguration(f.field, "failed to read %s: %v", f.path, err)
		}
		*f.dst = string(data)
	}
	return &out, nil
}

// TLSConfig builds a *tls.Config from inline PEM material. It returns nil
// when ssl is nil or disabled. serverName is used when ssl names none.
func TLSConfig(ssl *core.SSLConfig, serverName string) (*tls.Config, error) {
	if ssl == nil || ssl.Mode == SSLDisable {
		return nil, nil
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         serverName,
		InsecureSkipVerify: ssl.InsecureSkipVerify, //nolint:gosec // explicit per-source opt-in
	}
	if ssl.ServerName != "" {
		cfg.ServerName = ssl.ServerName
	}

	if ssl.CA != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(ssl.CA)) {
			return nil, core.ErrConfiguration("ssl.ca", "no certificates found in CA PEM")
		}
		cfg.RootCAs = pool
	} else if ssl.Mode == SSLRequire {
		// require encrypts without verifying the server.
		cfg.InsecureSkipVerify = true
	}

	if ssl.Cert != "" || ssl.Key != "" {
		if ssl.Cert == "" || ssl.Key == "" {
			return nil, core.ErrConfiguration("ssl", "client certificate and key must be set together")
		}
		pair, err := tls.X509KeyPair([]byte(ssl.Cert), []byte(ssl.Key))
		if err != nil {
			return nil, core.ErrConfiguration("ssl.cert", "invalid client key pair: %v", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	if ssl.Mode == SSLVerifyCA && cfg.RootCAs != nil {
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = verifyChainOnly(cfg.RootCAs)
	}
	return cfg, nil
}

// verifyChainOnly checks the server chain against roots without checking the
// host name.
func verifyChainOnly(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(raw [][]byte, _ [][]*x509.Certificate) error {
		if len(raw) == 0 {
			return fmt.Errorf("server presented no certificates")
		}
		certs := make([]*x509.Certificate, len(raw))
		for i, der := range raw {
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return fmt.Errorf("failed to parse server certificate: %w", err)
			}
			certs[i] = cert
		}
		intermediates := x509.NewCertPool()
		for _, c := range certs[1:] {
			intermediates.AddCert(c)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: intermediates})
		return err
	}
}
