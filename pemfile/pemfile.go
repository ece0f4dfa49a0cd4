/*
Package pemfile converts certificates and keys between in-memory form,
PEM text, and PKCS#12 containers. It performs no I/O.
*/
package pemfile

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

const (
	CertificateType = "CERTIFICATE"
	PrivateKeyType  = "PRIVATE KEY"
)

// PKCS12Password protects generated PKCS#12 bundles. It is empty: the
// encryption is a container format requirement, not a confidentiality
// control, and an empty passphrase imports cleanly with
// `openssl pkcs12 -passin pass:`.
const PKCS12Password = ""

func EncodeCertificate(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: CertificateType, Bytes: der})
}

func EncodePrivateKey(key crypto.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: PrivateKeyType, Bytes: der}), nil
}

func ParseCertificate(data []byte) (*x509.Certificate, error) {
	blk, _ := pem.Decode(data)
	if blk == nil || blk.Type != CertificateType {
		return nil, errors.New("no CERTIFICATE PEM block found")
	}

	cert, err := x509.ParseCertificate(blk.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert, nil
}

// ParseCertificates returns every certificate found in data, in order.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for blk, rest := pem.Decode(data); blk != nil; blk, rest = pem.Decode(rest) {
		if blk.Type != CertificateType {
			continue
		}

		cert, err := x509.ParseCertificate(blk.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	blk, _ := pem.Decode(data)
	if blk == nil || blk.Type != PrivateKeyType {
		return nil, errors.New("no PRIVATE KEY PEM block found")
	}

	key, err := x509.ParsePKCS8PrivateKey(blk.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return signer, nil
}

// EncodePKCS12 bundles a leaf certificate, its key, and the issuing CA
// certificates into a PKCS#12 container.
func EncodePKCS12(key crypto.PrivateKey, leaf *x509.Certificate, caCerts []*x509.Certificate, password string) ([]byte, error) {
	data, err := pkcs12.Encode(rand.Reader, key, leaf, caCerts, password)
	if err != nil {
		return nil, fmt.Errorf("encode PKCS#12: %w", err)
	}
	return data, nil
}
