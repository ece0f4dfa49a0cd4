package truststore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Platform struct {
	HomeDir string

	DataFS DataFS
	SysFS  CmdFS

	inito                sync.Once
	certutilInstallHelp  string
	trustFilenamePattern string
	trustCommand         []string
}

func firefoxProfiles(homeDir string) []string {
	return []string{
		filepath.Join(homeDir, "/.mozilla/firefox/*"),
		filepath.Join(homeDir, "/snap/firefox/common/.mozilla/firefox/*"),
	}
}

func certutilInstallHelp(sysFS CmdFS) string {
	switch {
	case binaryExists(sysFS, "apt"):
		return "apt install libnss3-tools"
	case binaryExists(sysFS, "yum"):
		return "yum install nss-tools"
	case binaryExists(sysFS, "zypper"):
		return "zypper install mozilla-nss-tools"
	}
	return ""
}

func (s *Platform) Description() string { return "System (Linux)" }

func (s *Platform) init() {
	s.inito.Do(func() {
		s.certutilInstallHelp = certutilInstallHelp(s.SysFS)

		switch {
		case pathExists(s.DataFS, "/etc/pki/ca-trust/source/anchors/"):
			s.trustFilenamePattern = "/etc/pki/ca-trust/source/anchors/%s.pem"
			s.trustCommand = []string{"update-ca-trust", "extract"}
		case pathExists(s.DataFS, "/usr/local/share/ca-certificates/"):
			s.trustFilenamePattern = "/usr/local/share/ca-certificates/%s.crt"
			s.trustCommand = []string{"update-ca-certificates"}
		case pathExists(s.DataFS, "/etc/ca-certificates/trust-source/anchors/"):
			s.trustFilenamePattern = "/etc/ca-certificates/trust-source/anchors/%s.crt"
			s.trustCommand = []string{"trust", "extract-compat"}
		case pathExists(s.DataFS, "/usr/share/pki/trust/anchors"):
			s.trustFilenamePattern = "/usr/share/pki/trust/anchors/%s.pem"
			s.trustCommand = []string{"update-ca-certificates"}
		}
	})
}

func (s *Platform) check() (bool, error) {
	s.init()

	if s.trustCommand == nil {
		return false, ErrUnsupportedDistro
	}

	return true, nil
}

func (s *Platform) checkCA(ca *CA) (bool, error) {
	path := s.trustFilenamePath(ca)
	if !pathExists(s.DataFS, path) {
		return false, nil
	}

	buf, err := readFile(s.DataFS, path)
	if err != nil {
		return false, fatalErr(err, "failed to read installed certificate")
	}

	return containsFingerprint(buf, Fingerprint(ca.Certificate))
}

func (s *Platform) installCA(ca *CA) (bool, error) {
	cert, err := os.ReadFile(ca.FilePath)
	if err != nil {
		return false, fatalErr(err, "failed to read root certificate")
	}

	cmd := s.SysFS.Command("tee", s.trustFilenamePath(ca))
	cmd.Stdin = bytes.NewReader(cert)
	if out, err := s.SysFS.SudoExec(cmd); err != nil {
		return false, fatalCmdErr(err, "tee", out)
	}

	if out, err := s.SysFS.SudoExec(s.SysFS.Command(s.trustCommand[0], s.trustCommand[1:]...)); err != nil {
		return false, fatalCmdErr(err, strings.Join(s.trustCommand, " "), out)
	}

	return true, nil
}

func (s *Platform) uninstallCA(ca *CA) (bool, error) {
	path := s.trustFilenamePath(ca)
	if !pathExists(s.DataFS, path) {
		return false, nil
	}

	cmd := s.SysFS.Command("rm", "-f", path)
	if out, err := s.SysFS.SudoExec(cmd); err != nil {
		return false, fatalCmdErr(err, "rm", out)
	}

	cmd = s.SysFS.Command(s.trustCommand[0], s.trustCommand[1:]...)
	if out, err := s.SysFS.SudoExec(cmd); err != nil {
		return false, fatalCmdErr(err, strings.Join(s.trustCommand, " "), out)
	}

	return true, nil
}

func (s *Platform) trustFilenamePath(ca *CA) string {
	return fmt.Sprintf(s.trustFilenamePattern, "fastcert-"+strings.Replace(ca.UniqueName, " ", "_", -1))
}
