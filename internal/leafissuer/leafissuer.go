// Package leafissuer mints short-lived leaf certificates for the DNS names
// the proxy presents to clients, signed by the CA in internal/ca.
package leafissuer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cursorstudio/cursorproxy/internal/ca"
)

// Validity is the lifetime of every leaf this package mints.
const Validity = 24 * time.Hour

// safetyMargin is how far ahead of a cached leaf's expiry the cache treats
// it as stale, so a handshake never races a certificate that is about to
// expire mid-connection.
const safetyMargin = 2 * time.Minute

// Leaf is a minted certificate chain plus the private key that signs for it.
// Chain is ordered [leaf, CA] so a tls.Certificate built from it presents a
// complete chain to the client.
type Leaf struct {
	Chain    [][]byte
	Key      *ecdsa.PrivateKey
	NotAfter time.Time
}

// Issuer mints and caches leaf certificates for a single CA.
type Issuer struct {
	ca    *ca.Material
	cache sync.Map // dns name -> *Leaf
}

// New returns an Issuer backed by material.
func New(material *ca.Material) *Issuer {
	return &Issuer{ca: material}
}

// Issue returns a cached, still-valid leaf for dnsName, or mints a fresh one.
func (i *Issuer) Issue(dnsName string) (*Leaf, error) {
	if v, ok := i.cache.Load(dnsName); ok {
		leaf := v.(*Leaf)
		if time.Now().Before(leaf.NotAfter.Add(-safetyMargin)) {
			return leaf, nil
		}
	}

	leaf, err := i.mint(dnsName)
	if err != nil {
		return nil, fmt.Errorf("leafissuer: issue %s: %w", dnsName, err)
	}
	i.cache.Store(dnsName, leaf)
	return leaf, nil
}

// TLSCertificate adapts a Leaf into a tls.Certificate suitable for
// tls.Config.GetCertificate.
func (l *Leaf) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: l.Chain,
		PrivateKey:  l.Key,
	}
}

func (i *Issuer) mint(dnsName string) (*Leaf, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	notAfter := now.Add(Validity)
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    now.Add(-5 * time.Minute),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, i.ca.Cert, &key.PublicKey, i.ca.Key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	return &Leaf{
		Chain:    [][]byte{der, i.ca.Cert.Raw},
		Key:      key,
		NotAfter: notAfter,
	}, nil
}
