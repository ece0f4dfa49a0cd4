/*
Package truststore manages the trust status of a CA certificate across
the trust anchor repositories found on a developer machine: the
operating system store, NSS certificate databases tied to browser
profiles, and Java keystores.

Every store matches certificates by fingerprint, not by file identity
or nickname, so the same logical CA is recognized however it was
imported.
*/
package truststore

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// CA is a store-facing handle on a CA certificate. FilePath points at
// the PEM file used by tooling that imports from disk; UniqueName is
// the stable nickname/alias used when a store needs one.
type CA struct {
	*x509.Certificate

	FilePath   string
	UniqueName string
}

// Store is one trust anchor repository. Check reports whether the
// store's external tooling is usable at all; CheckCA reports whether
// the given CA is currently trusted.
//
// InstallCA and UninstallCA return (false, nil) for no-ops: installing
// an already-trusted CA or uninstalling an absent one.
type Store interface {
	Description() string

	Check() (bool, error)
	CheckCA(ca *CA) (bool, error)
	InstallCA(ca *CA) (bool, error)
	UninstallCA(ca *CA) (bool, error)
}

// Fingerprint returns the uppercase hex SHA-256 digest of the
// certificate's DER encoding.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func fatalErr(err error, msg string) error {
	return fmt.Errorf("%s: %w", msg, err)
}

func fatalCmdErr(err error, cmd string, out []byte) error {
	return fmt.Errorf("failed to execute %q: %w\n\n%s\n", cmd, err, out)
}

func binaryExists(fs CmdFS, name string) bool {
	_, err := fs.LookPath(name)
	return err == nil
}

func pathExists(sfs fs.StatFS, path string) bool {
	_, err := sfs.Stat(strings.Trim(path, string(os.PathSeparator)))
	return err == nil
}

func readFile(dfs DataFS, path string) ([]byte, error) {
	return dfs.ReadFile(strings.Trim(path, string(os.PathSeparator)))
}

// containsFingerprint reports whether any certificate in the PEM data
// has the given fingerprint.
func containsFingerprint(pemData []byte, fingerprint string) (bool, error) {
	for blk, rest := pem.Decode(pemData); blk != nil; blk, rest = pem.Decode(rest) {
		if blk.Type != "CERTIFICATE" {
			continue
		}

		cert, err := parseCertificate(blk.Bytes)
		if err != nil {
			return false, err
		}
		if cert != nil && Fingerprint(cert) == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func parseCertificate(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		if strings.HasPrefix(err.Error(), "x509: certificate contains duplicate extension") {
			return nil, nil
		}
		if strings.HasPrefix(err.Error(), "x509: inner and outer signature algorithm identifiers don't match") {
			return nil, nil
		}
		return nil, err
	}
	return cert, nil
}
