package truststore

import "errors"

var (
	ErrNoSudo = errors.New(`"sudo" is not available`)

	ErrNoKeytool  = errors.New("no java keytool")
	ErrNoJavaHome = errors.New("JAVA_HOME is not set")

	ErrNoCertutil = errors.New("no certutil tooling")
	ErrNoNSSDB    = errors.New("no NSS database")
	ErrUnknownNSS = errors.New("NSS install verification failed")

	ErrUnsupportedDistro = errors.New("unsupported Linux distribution")
)

type Op string

const (
	OpCheck     Op = "check"
	OpInstall   Op = "install"
	OpSudo      Op = "sudo"
	OpUninstall Op = "uninstall"
)

// Error classifies a store failure. A Warning means the store could not
// be serviced for an expected environmental reason, commonly absent
// tooling, and the caller may treat the store as skipped. A Fatal error
// means the operation was attempted and failed.
type Error struct {
	Op

	Fatal   error
	Warning error
}

func (e Error) Error() string {
	if e.Fatal != nil {
		return e.Fatal.Error()
	}
	return e.Warning.Error()
}

func (e Error) Unwrap() error {
	if e.Fatal != nil {
		return e.Fatal
	}
	return e.Warning
}

type NSSError struct {
	Err error

	CertutilInstallHelp string
	Profile             string
}

func (e NSSError) Error() string { return e.Err.Error() }
func (e NSSError) Unwrap() error { return e.Err }

type PlatformError struct {
	Err error

	RootCA string
}

func (e PlatformError) Error() string { return e.Err.Error() }
func (e PlatformError) Unwrap() error { return e.Err }
