/*
Package ca manages the local root certificate authority: resolving its
storage location, creating it on first use, and loading it afterwards.

The root directory holds exactly two files, the certificate and the
key. A directory where only one of the two exists is an error state and
is never repaired automatically: regenerating the pair would silently
invalidate every certificate issued and every trust store entry
installed under the old root.
*/
package ca

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/fastcertdev/fastcert/pemfile"
	"github.com/fastcertdev/fastcert/truststore"
)

const (
	RootCertFile = "rootCA.pem"
	RootKeyFile  = "rootCA-key.pem"

	rootKeyBits = 3072
)

// ClockSkewBackdate is subtracted from notBefore on every generated
// certificate to tolerate clock skew between the issuing and verifying
// machines.
const ClockSkewBackdate = time.Hour

var (
	ErrRootNotFound = errors.New("CA root not found")
	ErrKeyMissing   = errors.New("CA key is missing: " + RootKeyFile + " does not exist but " + RootCertFile + " does")
	ErrCertMissing  = errors.New("CA certificate is missing: " + RootCertFile + " does not exist but " + RootKeyFile + " does")
)

type CA struct {
	Root string

	Certificate *x509.Certificate
	Key         crypto.Signer
}

func (c *CA) CertPath() string { return filepath.Join(c.Root, RootCertFile) }
func (c *CA) KeyPath() string  { return filepath.Join(c.Root, RootKeyFile) }

// Handle returns the trust store view of this CA, identified by serial
// number the way stores nickname it.
func (c *CA) Handle() *truststore.CA {
	return &truststore.CA{
		Certificate: c.Certificate,

		FilePath:   c.CertPath(),
		UniqueName: c.Certificate.SerialNumber.Text(16),
	}
}

// DefaultRoot resolves the CA root directory: the CAROOT environment
// variable when set, otherwise a fastcert directory under the
// platform's user config directory.
func DefaultRoot() string {
	if dir := os.Getenv("CAROOT"); dir != "" {
		return dir
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fastcert")
}

// Load parses an existing CA from root. It returns ErrRootNotFound when
// neither file exists, and the partial-state errors when only one does.
func Load(root string) (*CA, error) {
	if root == "" {
		return nil, errors.New("no CA root directory, set CAROOT")
	}

	certPath := filepath.Join(root, RootCertFile)
	keyPath := filepath.Join(root, RootKeyFile)

	switch certExists, keyExists := fileExists(certPath), fileExists(keyPath); {
	case certExists && keyExists:
		return load(root, certPath, keyPath)
	case certExists:
		return nil, ErrKeyMissing
	case keyExists:
		return nil, ErrCertMissing
	}
	return nil, ErrRootNotFound
}

// LoadOrCreate parses the CA under root, generating a new one when the
// directory holds neither file. Creation is exclusive: when two
// processes race, exactly one wins and the other fails instead of
// overwriting key material.
func LoadOrCreate(root string) (*CA, error) {
	if root == "" {
		return nil, errors.New("no CA root directory, set CAROOT")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create CA root directory: %w", err)
	}

	ca, err := Load(root)
	if err == nil || !errors.Is(err, ErrRootNotFound) {
		return ca, err
	}
	return create(root)
}

func load(root, certPath, keyPath string) (*CA, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", RootCertFile, err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", RootKeyFile, err)
	}

	cert, err := pemfile.ParseCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", RootCertFile, err)
	}
	if !cert.IsCA {
		return nil, fmt.Errorf("%s is not a certificate authority", RootCertFile)
	}

	key, err := pemfile.ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", RootKeyFile, err)
	}

	type publicKey interface {
		Equal(crypto.PublicKey) bool
	}
	if pub, ok := cert.PublicKey.(publicKey); !ok || !pub.Equal(key.Public()) {
		return nil, errors.New(RootKeyFile + " does not match " + RootCertFile)
	}

	return &CA{Root: root, Certificate: cert, Key: key}, nil
}

func create(root string) (*CA, error) {
	key, err := rsa.GenerateKey(rand.Reader, rootKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	identity := UserAndHostname()
	now := time.Now()

	tpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization:       []string{"fastcert development CA"},
			OrganizationalUnit: []string{identity},
			CommonName:         "fastcert " + identity,
		},

		NotBefore: now.Add(-ClockSkewBackdate),
		NotAfter:  now.Add(-ClockSkewBackdate).AddDate(10, 0, 0),

		KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,

		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLenZero:        true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("sign CA certificate: %w", err)
	}

	keyPEM, err := pemfile.EncodePrivateKey(key)
	if err != nil {
		return nil, err
	}

	keyPath := filepath.Join(root, RootKeyFile)
	if err := writeFileExclusive(keyPath, keyPEM, 0400); err != nil {
		return nil, fmt.Errorf("write %s: %w", RootKeyFile, err)
	}

	certPath := filepath.Join(root, RootCertFile)
	if err := writeFileExclusive(certPath, pemfile.EncodeCertificate(der), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", RootCertFile, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}

	return &CA{Root: root, Certificate: cert, Key: key}, nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	return serial, nil
}

// UserAndHostname identifies the invoking user and machine, used in
// certificate subjects.
func UserAndHostname() string {
	var name string
	if u, err := user.Current(); err == nil {
		name = u.Username + "@"
	}
	if host, err := os.Hostname(); err == nil {
		name += host
	}
	if u, err := user.Current(); err == nil && strings.TrimSpace(u.Name) != "" {
		name += " (" + strings.TrimSpace(u.Name) + ")"
	}
	return name
}

// writeFileExclusive persists data atomically and exclusively: the
// content is staged in a temp file in the same directory, then linked
// into place. Linking fails when the target already exists, so the
// loser of a creation race gets an error instead of clobbering the
// winner's file, and a crash mid-write never leaves a truncated file.
func writeFileExclusive(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Link(tmp.Name(), path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
