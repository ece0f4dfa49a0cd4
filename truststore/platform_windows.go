package truststore

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"unsafe"
)

var (
	modcrypt32                           = syscall.NewLazyDLL("crypt32.dll")
	procCertAddEncodedCertificateToStore = modcrypt32.NewProc("CertAddEncodedCertificateToStore")
	procCertCloseStore                   = modcrypt32.NewProc("CertCloseStore")
	procCertDeleteCertificateFromStore   = modcrypt32.NewProc("CertDeleteCertificateFromStore")
	procCertDuplicateCertificateContext  = modcrypt32.NewProc("CertDuplicateCertificateContext")
	procCertEnumCertificatesInStore      = modcrypt32.NewProc("CertEnumCertificatesInStore")
	procCertOpenSystemStoreW             = modcrypt32.NewProc("CertOpenSystemStoreW")
)

const (
	certStoreAddReplaceExisting = 3
	cryptENotFound              = 0x80092004
)

func certutilInstallHelp(_ CmdFS) string {
	return "" // certutil unsupported on Windows
}

func firefoxProfiles(homeDir string) []string {
	return []string{
		filepath.Join(homeDir, "\\AppData\\Roaming\\Mozilla\\Firefox\\Profiles"),
	}
}

type Platform struct {
	HomeDir string

	DataFS DataFS
	SysFS  CmdFS

	inito               sync.Once
	certutilInstallHelp string
}

func (s *Platform) Description() string { return "System (Windows)" }

func (s *Platform) check() (bool, error) {
	s.inito.Do(func() {
		s.certutilInstallHelp = certutilInstallHelp(s.SysFS)
	})

	return true, nil
}

func (s *Platform) checkCA(ca *CA) (bool, error) {
	store, err := openWindowsRootStore()
	if err != nil {
		return false, fatalErr(err, "open root store")
	}
	defer store.close()

	found := false
	err = store.forEachCert(func(cert *x509.Certificate) error {
		if Fingerprint(cert) == Fingerprint(ca.Certificate) {
			found = true
		}
		return nil
	})
	if err != nil {
		return false, fatalErr(err, "enumerate certs")
	}
	return found, nil
}

func (s *Platform) installCA(ca *CA) (bool, error) {
	cert, err := readFile(s.DataFS, ca.FilePath)
	if err != nil {
		return false, fatalErr(err, "failed to read root certificate")
	}
	certBlock, _ := pem.Decode(cert)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return false, fatalErr(fmt.Errorf("invalid PEM data"), "decode pem")
	}

	store, err := openWindowsRootStore()
	if err != nil {
		return false, fatalErr(err, "open root store")
	}
	defer store.close()

	if err := store.addCert(certBlock.Bytes); err != nil {
		return false, fatalErr(err, "add cert")
	}
	return true, nil
}

func (s *Platform) uninstallCA(ca *CA) (bool, error) {
	store, err := openWindowsRootStore()
	if err != nil {
		return false, fatalErr(err, "open root store")
	}
	defer store.close()

	deletedAny, err := store.deleteCertsWithFingerprint(Fingerprint(ca.Certificate))
	if err != nil {
		return false, fatalErr(err, "delete cert")
	}
	return deletedAny, nil
}

type windowsRootStore uintptr

func openWindowsRootStore() (windowsRootStore, error) {
	rootStr, err := syscall.UTF16PtrFromString("ROOT")
	if err != nil {
		return 0, err
	}
	store, _, err := procCertOpenSystemStoreW.Call(0, uintptr(unsafe.Pointer(rootStr)))
	if store != 0 {
		return windowsRootStore(store), nil
	}
	return 0, fmt.Errorf("failed to open windows root store: %v", err)
}

func (w windowsRootStore) close() error {
	ret, _, err := procCertCloseStore.Call(uintptr(w), 0)
	if ret != 0 {
		return nil
	}
	return fmt.Errorf("failed to close windows root store: %v", err)
}

func (w windowsRootStore) addCert(cert []byte) error {
	ret, _, err := procCertAddEncodedCertificateToStore.Call(
		uintptr(w), // HCERTSTORE hCertStore
		uintptr(syscall.X509_ASN_ENCODING|syscall.PKCS_7_ASN_ENCODING), // DWORD dwCertEncodingType
		uintptr(unsafe.Pointer(&cert[0])),                              // const BYTE *pbCertEncoded
		uintptr(len(cert)),                                             // DWORD cbCertEncoded
		certStoreAddReplaceExisting,                                    // DWORD dwAddDisposition
		0,                                                              // PCCERT_CONTEXT *ppCertContext
	)
	if ret != 0 {
		return nil
	}
	return fmt.Errorf("failed adding cert: %v", err)
}

// forEachCert calls fn for every parseable certificate in the store. Parse
// failures are skipped.
func (w windowsRootStore) forEachCert(fn func(*x509.Certificate) error) error {
	var cert *syscall.CertContext
	for {
		certPtr, _, err := procCertEnumCertificatesInStore.Call(uintptr(w), uintptr(unsafe.Pointer(cert)))
		if cert = (*syscall.CertContext)(unsafe.Pointer(certPtr)); cert == nil {
			if errno, ok := err.(syscall.Errno); ok && errno == cryptENotFound {
				return nil
			}
			return fmt.Errorf("failed enumerating certs: %v", err)
		}
		certBytes := unsafe.Slice((*byte)(unsafe.Pointer(cert.EncodedCert)), cert.Length)
		parsedCert, err := x509.ParseCertificate(certBytes)
		if err != nil {
			continue
		}
		if err := fn(parsedCert); err != nil {
			return err
		}
	}
}

func (w windowsRootStore) deleteCertsWithFingerprint(fingerprint string) (bool, error) {
	var cert *syscall.CertContext
	deletedAny := false
	for {
		certPtr, _, err := procCertEnumCertificatesInStore.Call(uintptr(w), uintptr(unsafe.Pointer(cert)))
		if cert = (*syscall.CertContext)(unsafe.Pointer(certPtr)); cert == nil {
			if errno, ok := err.(syscall.Errno); ok && errno == cryptENotFound {
				break
			}
			return deletedAny, fmt.Errorf("failed enumerating certs: %v", err)
		}
		certBytes := unsafe.Slice((*byte)(unsafe.Pointer(cert.EncodedCert)), cert.Length)
		parsedCert, err := x509.ParseCertificate(certBytes)
		if err != nil || Fingerprint(parsedCert) != fingerprint {
			continue
		}
		// Duplicate the context so deleting it doesn't stop the enum.
		dupCertPtr, _, err := procCertDuplicateCertificateContext.Call(uintptr(unsafe.Pointer(cert)))
		if dupCertPtr == 0 {
			return deletedAny, fmt.Errorf("failed duplicating context: %v", err)
		}
		if ret, _, err := procCertDeleteCertificateFromStore.Call(dupCertPtr); ret == 0 {
			return deletedAny, fmt.Errorf("failed deleting certificate: %v", err)
		}
		deletedAny = true
	}
	return deletedAny, nil
}
