// Package ca owns the proxy's long-lived certificate authority: it loads an
// existing CA keypair from disk or generates a fresh one, and exposes the CA
// certificate in PEM form for installation into a client trust store.
package ca

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

// Validity is how long a generated CA certificate remains valid.
const Validity = 10 * 365 * 24 * time.Hour

// CommonName is the subject of every CA this package generates.
const CommonName = "Cursor Proxy CA"

// Material is the CA's identity: its certificate and the private key that
// signs every leaf certificate minted by internal/leafissuer.
type Material struct {
	Cert    *x509.Certificate
	Key     *ecdsa.PrivateKey
	CertPEM []byte
	KeyPEM  []byte
}

// LoadOrGenerate loads the CA keypair from certPath/keyPath if both files
// exist, otherwise generates a fresh self-signed CA and persists it there.
// The key file is written with owner-only permissions; the certificate is
// world-readable. With force set, any existing material at certPath/keyPath
// is ignored and overwritten with a freshly generated CA.
func LoadOrGenerate(certPath, keyPath string, force bool) (*Material, error) {
	if !force {
		certPEM, certErr := os.ReadFile(certPath)
		keyPEM, keyErr := os.ReadFile(keyPath)
		if certErr == nil && keyErr == nil {
			m, err := parse(certPEM, keyPEM)
			if err != nil {
				return nil, fmt.Errorf("ca: parse existing material: %w", err)
			}
			return m, nil
		}
	}

	m, err := generate()
	if err != nil {
		return nil, fmt.Errorf("ca: generate: %w", err)
	}
	if err := os.WriteFile(certPath, m.CertPEM, 0o644); err != nil {
		return nil, fmt.Errorf("ca: write cert: %w", err)
	}
	if err := os.WriteFile(keyPath, m.KeyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("ca: write key: %w", err)
	}
	return m, nil
}

func generate() (*Material, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   CommonName,
			Organization: []string{"Cursor Proxy"},
		},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(Validity),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse generated certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return &Material{Cert: cert, Key: key, CertPEM: certPEM, KeyPEM: keyPEM}, nil
}

func parse(certPEM, keyPEM []byte) (*Material, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("no PEM block in cert file")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse cert: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("no PEM block in key file")
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}

	return &Material{Cert: cert, Key: key, CertPEM: certPEM, KeyPEM: keyPEM}, nil
}

// ExportPEM returns the CA certificate in PEM form, suitable for printing or
// installation into a trust store (the `trust-ca` CLI operation).
func (m *Material) ExportPEM() string { return string(m.CertPEM) }
