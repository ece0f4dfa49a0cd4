package truststore

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

const (
	certutilBadDatabaseOutput    = "SEC_ERROR_BAD_DATABASE"
	certutilPRFileNotFoundOutput = "PR_FILE_NOT_FOUND_ERROR"
	certutilSecReadOnlyOutput    = "SEC_ERROR_READ_ONLY"
)

var trustAttributesRegexp = regexp.MustCompile(`\s+[a-zA-Z]?,[a-zA-z]?,[a-zA-Z]?\s*$`)

var firefoxPaths = []string{
	"/usr/bin/firefox",
	"/usr/bin/firefox-nightly",
	"/usr/bin/firefox-developer-edition",
	"/snap/firefox",
	"/Applications/Firefox.app",
	"/Applications/FirefoxDeveloperEdition.app",
	"/Applications/Firefox Developer Edition.app",
	"/Applications/Firefox Nightly.app",
	"C:\\Program Files\\Mozilla Firefox",
}

// NSSProfiles discovers the NSS certificate databases reachable from
// homeDir. Each returned profile carries the certutil database prefix,
// "sql:" for cert9.db databases and "dbm:" for legacy cert8.db ones.
func NSSProfiles(dataFS DataFS, homeDir string) []string {
	candidates := []string{
		filepath.Join(homeDir, ".pki/nssdb"),
		filepath.Join(homeDir, "snap/chromium/current/.pki/nssdb"), // Snapcraft
		"/etc/pki/nssdb", // CentOS 7
	}
	candidates = append(candidates, firefoxPaths...)

	for _, pattern := range firefoxProfiles(homeDir) {
		matches, _ := filepath.Glob(pattern)
		candidates = append(candidates, matches...)
	}

	var profiles []string
	for _, dir := range candidates {
		if !pathExists(dataFS, dir) {
			continue
		}
		if pathExists(dataFS, filepath.Join(dir, "cert9.db")) {
			profiles = append(profiles, "sql:"+dir)
		} else if pathExists(dataFS, filepath.Join(dir, "cert8.db")) {
			profiles = append(profiles, "dbm:"+dir)
		}
	}
	return profiles
}

// NSS services one NSS certificate database, addressed by its certutil
// profile string.
type NSS struct {
	Profile string

	DataFS DataFS
	SysFS  CmdFS

	inito               sync.Once
	certutilPath        string
	certutilInstallHelp string
}

func (s *NSS) init() {
	s.inito.Do(func() {
		switch runtime.GOOS {
		case "darwin":
			switch {
			case binaryExists(s.SysFS, "certutil"):
				s.certutilPath, _ = s.SysFS.LookPath("certutil")
			case pathExists(s.DataFS, "/usr/local/opt/nss/bin/certutil"):
				// Check the default Homebrew path, to save executing Ruby.
				s.certutilPath = "/usr/local/opt/nss/bin/certutil"
			default:
				if out, err := s.SysFS.Exec(s.SysFS.Command("brew", "--prefix", "nss")); err == nil {
					certutilPath := filepath.Join(strings.TrimSpace(string(out)), "bin", "certutil")
					if pathExists(s.DataFS, certutilPath) {
						s.certutilPath = certutilPath
					}
				}
			}
		default:
			if binaryExists(s.SysFS, "certutil") {
				s.certutilPath, _ = s.SysFS.LookPath("certutil")
			}
		}

		s.certutilInstallHelp = certutilInstallHelp(s.SysFS)
	})
}

func (s *NSS) Description() string {
	if s.Profile == "" {
		return "NSS"
	}
	return fmt.Sprintf("NSS (%s)", strings.TrimPrefix(strings.TrimPrefix(s.Profile, "sql:"), "dbm:"))
}

func (s *NSS) Check() (bool, error) {
	s.init()

	if s.Profile == "" {
		return false, s.warningErr(OpCheck, ErrNoNSSDB)
	}
	if s.certutilPath == "" {
		return false, s.warningErr(OpCheck, ErrNoCertutil)
	}
	return true, nil
}

func (s *NSS) CheckCA(ca *CA) (bool, error) {
	s.init()

	if s.certutilPath == "" {
		return false, s.warningErr(OpCheck, ErrNoCertutil)
	}

	nicks, err := s.caNicknames(ca)
	if err != nil {
		return false, err
	}
	return len(nicks) > 0, nil
}

func (s *NSS) InstallCA(ca *CA) (bool, error) {
	s.init()

	if s.certutilPath == "" {
		return false, s.warningErr(OpInstall, ErrNoCertutil)
	}

	args := []string{
		"-A", "-d", s.Profile,
		"-t", "C,,",
		"-n", ca.UniqueName,
		"-i", ca.FilePath,
	}

	out, err := s.execCertutil(args...)
	if err != nil {
		return false, s.resultErr(OpInstall, out, err)
	}

	if ok, _ := s.CheckCA(ca); !ok {
		return false, Error{Op: OpInstall, Warning: ErrUnknownNSS}
	}
	return true, nil
}

func (s *NSS) UninstallCA(ca *CA) (bool, error) {
	s.init()

	if s.certutilPath == "" {
		return false, s.warningErr(OpUninstall, ErrNoCertutil)
	}

	nicks, err := s.caNicknames(ca)
	if err != nil {
		return false, err
	}
	if len(nicks) == 0 {
		return false, nil
	}

	for _, nick := range nicks {
		out, err := s.execCertutil("-D", "-d", s.Profile, "-n", nick)
		if err != nil {
			return false, s.resultErr(OpUninstall, out, err)
		}
	}
	return true, nil
}

// caNicknames lists the nicknames in the database whose certificate
// matches ca by fingerprint. Nickname alone is not trusted to identify
// the certificate since unrelated tools may reuse a name.
func (s *NSS) caNicknames(ca *CA) ([]string, error) {
	out, err := s.SysFS.Exec(s.SysFS.Command(s.certutilPath, "-L", "-d", s.Profile))
	if err != nil {
		if bytes.Contains(out, []byte(certutilPRFileNotFoundOutput)) {
			return nil, nil
		}
		if bytes.Contains(out, []byte(certutilBadDatabaseOutput)) {
			return nil, s.warningErr(OpCheck, fmt.Errorf("corrupt NSS database: %q", out))
		}
		return nil, s.resultErr(OpCheck, out, err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) <= 3 {
		return nil, nil // header only, no certs
	}

	fingerprint := Fingerprint(ca.Certificate)

	var nicks []string
	for _, line := range lines[3:] {
		nick := parseCertNick(line)
		if nick == "" {
			continue
		}

		out, err := s.SysFS.Exec(s.SysFS.Command(s.certutilPath, "-L", "-d", s.Profile, "-n", nick, "-a"))
		if err != nil {
			continue
		}
		if ok, _ := containsFingerprint(out, fingerprint); ok {
			nicks = append(nicks, nick)
		}
	}
	return nicks, nil
}

// execCertutil runs certutil and retries with sudo when the database is
// writable only by root.
func (s *NSS) execCertutil(arg ...string) ([]byte, error) {
	out, err := s.SysFS.Exec(s.SysFS.Command(s.certutilPath, arg...))
	if err != nil && bytes.Contains(out, []byte(certutilSecReadOnlyOutput)) && runtime.GOOS != "windows" {
		out, err = s.SysFS.SudoExec(s.SysFS.Command(s.certutilPath, arg...))
	}
	return out, err
}

func (s *NSS) warningErr(op Op, err error) error {
	return Error{
		Op: op,

		Warning: NSSError{
			Err: err,

			CertutilInstallHelp: s.certutilInstallHelp,
			Profile:             s.Profile,
		},
	}
}

func (s *NSS) resultErr(op Op, out []byte, err error) error {
	return Error{
		Op: op,

		Fatal: NSSError{
			Err: fmt.Errorf("certutil: %w: %q", err, out),

			CertutilInstallHelp: s.certutilInstallHelp,
			Profile:             s.Profile,
		},
	}
}

func parseCertNick(line string) string {
	if !trustAttributesRegexp.MatchString(line) {
		return ""
	}
	return trustAttributesRegexp.ReplaceAllString(line, "")
}
