/*
Package cert issues leaf certificates signed by the local root CA.

The subject alternative name extension is built by hand so that the
identifiers appear in exactly the order they were requested, rather
than grouped by type the way the x509 package emits them.
*/
package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fastcertdev/fastcert/ca"
	"github.com/fastcertdev/fastcert/pemfile"
)

// DefaultLeafValidity keeps issued certificates inside the 825 day
// lifetime limit enforced by Apple and Chrome for locally added roots.
const DefaultLeafValidity = 825 * 24 * time.Hour

const leafKeyBits = 2048

// Request describes one issuance. Hosts keep their request order all
// the way into the certificate.
type Request struct {
	Hosts []string

	ECDSA  bool
	Client bool
	PKCS12 bool
}

// Leaf is an issued certificate with its generated private key.
type Leaf struct {
	Certificate *x509.Certificate
	DER         []byte
	PrivateKey  crypto.Signer

	PKCS12 []byte

	hosts []string
}

type Issuer struct {
	CA *ca.CA
}

// Issue validates the whole request, generates a key pair, and signs a
// leaf certificate. No key material is generated until every host has
// passed validation.
func (iss *Issuer) Issue(req Request) (*Leaf, error) {
	if len(req.Hosts) == 0 {
		return nil, errors.New("no hosts given")
	}

	ids, err := ClassifyAll(req.Hosts)
	if err != nil {
		return nil, err
	}

	key, err := generateLeafKey(req.ECDSA)
	if err != nil {
		return nil, fmt.Errorf("failed to generate leaf key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	sanExt, err := marshalSANs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build subject alternative names: %w", err)
	}

	keyUsage := x509.KeyUsageDigitalSignature
	if !req.ECDSA {
		// RSA key exchange needs the encipherment bit
		keyUsage |= x509.KeyUsageKeyEncipherment
	}

	ekus := []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	if req.Client {
		ekus = append(ekus, x509.ExtKeyUsageClientAuth)
	}

	now := time.Now()

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization:       []string{"fastcert development certificate"},
			OrganizationalUnit: []string{ca.UserAndHostname()},
			CommonName:         req.Hosts[0],
		},

		NotBefore: now.Add(-ca.ClockSkewBackdate),
		NotAfter:  now.Add(DefaultLeafValidity),

		KeyUsage:    keyUsage,
		ExtKeyUsage: ekus,

		ExtraExtensions: []pkix.Extension{sanExt},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, iss.CA.Certificate, key.Public(), iss.CA.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	leafCert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	leaf := &Leaf{
		Certificate: leafCert,
		DER:         der,
		PrivateKey:  key,

		hosts: req.Hosts,
	}

	if req.PKCS12 {
		p12, err := pemfile.EncodePKCS12(key, leafCert, []*x509.Certificate{iss.CA.Certificate}, pemfile.PKCS12Password)
		if err != nil {
			return nil, fmt.Errorf("failed to build PKCS#12 bundle: %w", err)
		}
		leaf.PKCS12 = p12
	}

	return leaf, nil
}

func generateLeafKey(useECDSA bool) (crypto.Signer, error) {
	if useECDSA {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	return rsa.GenerateKey(rand.Reader, leafKeyBits)
}

// GeneralName context-specific tags from RFC 5280 section 4.2.1.6.
const (
	nameTypeEmail = 1
	nameTypeDNS   = 2
	nameTypeURI   = 6
	nameTypeIP    = 7
)

var oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

func marshalSANs(ids []HostIdentifier) (pkix.Extension, error) {
	var rawValues []asn1.RawValue
	for _, id := range ids {
		switch id.Kind {
		case KindDNS, KindWildcardDNS:
			rawValues = append(rawValues, asn1.RawValue{
				Class: asn1.ClassContextSpecific, Tag: nameTypeDNS, Bytes: []byte(id.Value),
			})
		case KindIP:
			ip := net.ParseIP(id.Value)
			if v4 := ip.To4(); v4 != nil {
				ip = v4
			}
			rawValues = append(rawValues, asn1.RawValue{
				Class: asn1.ClassContextSpecific, Tag: nameTypeIP, Bytes: ip,
			})
		case KindEmail:
			rawValues = append(rawValues, asn1.RawValue{
				Class: asn1.ClassContextSpecific, Tag: nameTypeEmail, Bytes: []byte(id.Value),
			})
		case KindURI:
			rawValues = append(rawValues, asn1.RawValue{
				Class: asn1.ClassContextSpecific, Tag: nameTypeURI, Bytes: []byte(id.Value),
			})
		}
	}

	der, err := asn1.Marshal(rawValues)
	if err != nil {
		return pkix.Extension{}, err
	}

	return pkix.Extension{Id: oidSubjectAltName, Value: der}, nil
}

// SubjectAltNames decodes the SAN extension in extension order,
// re-classifying each entry. It is the inverse of marshalSANs.
func SubjectAltNames(cert *x509.Certificate) ([]HostIdentifier, error) {
	var sanDER []byte
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			sanDER = ext.Value
			break
		}
	}
	if sanDER == nil {
		return nil, nil
	}

	var seq asn1.RawValue
	rest, err := asn1.Unmarshal(sanDER, &seq)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 || seq.Tag != asn1.TagSequence {
		return nil, errors.New("malformed subject alternative name extension")
	}

	var ids []HostIdentifier
	for data := seq.Bytes; len(data) > 0; {
		var v asn1.RawValue
		if data, err = asn1.Unmarshal(data, &v); err != nil {
			return nil, err
		}

		switch v.Tag {
		case nameTypeDNS:
			ids = append(ids, Classify(string(v.Bytes)))
		case nameTypeEmail:
			ids = append(ids, HostIdentifier{Kind: KindEmail, Value: string(v.Bytes)})
		case nameTypeURI:
			ids = append(ids, HostIdentifier{Kind: KindURI, Value: string(v.Bytes)})
		case nameTypeIP:
			ids = append(ids, HostIdentifier{Kind: KindIP, Value: net.IP(v.Bytes).String()})
		}
	}
	return ids, nil
}

// Files returns the output paths for the leaf, derived from the first
// host: ":" becomes "_", "*" becomes "_wildcard", and "+N" marks N
// additional hosts.
func (l *Leaf) Files(dir string, client bool) (certFile, keyFile, p12File string) {
	base := strings.Replace(l.hosts[0], ":", "_", -1)
	base = strings.Replace(base, "*", "_wildcard", -1)
	if len(l.hosts) > 1 {
		base += "+" + fmt.Sprint(len(l.hosts)-1)
	}
	if client {
		base += "-client"
	}

	return filepath.Join(dir, base+".pem"),
		filepath.Join(dir, base+"-key.pem"),
		filepath.Join(dir, base+".p12")
}

// WriteFiles persists the leaf artifacts. The key file is written with
// owner-only permissions; empty paths fall back to the derived names.
func (l *Leaf) WriteFiles(certFile, keyFile, p12File string) error {
	certPEM := pemfile.EncodeCertificate(l.DER)
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	keyPEM, err := pemfile.EncodePrivateKey(l.PrivateKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	if l.PKCS12 != nil {
		if err := os.WriteFile(p12File, l.PKCS12, 0644); err != nil {
			return fmt.Errorf("failed to write PKCS#12 bundle: %w", err)
		}
	}
	return nil
}
