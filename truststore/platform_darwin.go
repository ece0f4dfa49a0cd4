package truststore

import (
	"bytes"
	"encoding/asn1"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"howett.net/plist"
)

// https://github.com/golang/go/issues/24652#issuecomment-399826583
var (
	trustSettings     []interface{}
	_, _              = plist.Unmarshal(trustSettingsData, &trustSettings)
	trustSettingsData = []byte(`
<array>
	<dict>
		<key>kSecTrustSettingsPolicy</key>
		<data>
		KoZIhvdjZAED
		</data>
		<key>kSecTrustSettingsPolicyName</key>
		<string>sslServer</string>
		<key>kSecTrustSettingsResult</key>
		<integer>1</integer>
	</dict>
	<dict>
		<key>kSecTrustSettingsPolicy</key>
		<data>
		KoZIhvdjZAEC
		</data>
		<key>kSecTrustSettingsPolicyName</key>
		<string>basicX509</string>
		<key>kSecTrustSettingsResult</key>
		<integer>1</integer>
	</dict>
</array>
`)
)

const systemKeychain = "/Library/Keychains/System.keychain"

func certutilInstallHelp(_ CmdFS) string { return "brew install nss" }

func firefoxProfiles(homeDir string) []string {
	return []string{
		filepath.Join(homeDir, "/Library/Application Support/Firefox/Profiles/*"),
	}
}

type Platform struct {
	HomeDir string

	DataFS DataFS
	SysFS  CmdFS

	inito               sync.Once
	certutilInstallHelp string
}

func (s *Platform) Description() string { return "System (macOS)" }

func (s *Platform) check() (bool, error) {
	s.inito.Do(func() {
		s.certutilInstallHelp = certutilInstallHelp(s.SysFS)
	})

	return true, nil
}

func (s *Platform) checkCA(ca *CA) (bool, error) {
	args := []string{
		"find-certificate", "-a", "-Z",
		systemKeychain,
	}

	out, err := s.SysFS.Exec(s.SysFS.Command("security", args...))
	if err != nil {
		return false, fatalCmdErr(err, "security find-certificate", out)
	}

	// -Z prints one "SHA-256 hash: <hex>" line per certificate
	return bytes.Contains(out, []byte(Fingerprint(ca.Certificate))), nil
}

func (s *Platform) installCA(ca *CA) (bool, error) {
	args := []string{
		"add-trusted-cert", "-d",
		"-k", systemKeychain,
		ca.FilePath,
	}
	if out, err := s.SysFS.SudoExec(s.SysFS.Command("security", args...)); err != nil {
		return false, fatalCmdErr(err, "security add-trusted-cert", out)
	}

	// Make trustSettings explicit, as older Go does not know the defaults.
	// https://github.com/golang/go/issues/24652

	plistFile, err := os.CreateTemp("", "trust-settings")
	if err != nil {
		return false, fatalErr(err, "failed to create temp file")
	}
	defer os.Remove(plistFile.Name())

	args = []string{
		"trust-settings-export",
		"-d", plistFile.Name(),
	}
	if out, err := s.SysFS.SudoExec(s.SysFS.Command("security", args...)); err != nil {
		return false, fatalCmdErr(err, "security trust-settings-export", out)
	}

	plistData, err := os.ReadFile(plistFile.Name())
	if err != nil {
		return false, fatalErr(err, "failed to read trust settings")
	}

	var plistRoot map[string]interface{}
	if _, err = plist.Unmarshal(plistData, &plistRoot); err != nil {
		return false, fatalErr(err, "failed to parse trust settings")
	}
	if plistRoot["trustVersion"].(uint64) != 1 {
		return false, fmt.Errorf("unsupported trust settings version: %v", plistRoot["trustVersion"])
	}

	rootSubjectASN1, err := asn1.Marshal(ca.Certificate.Subject.ToRDNSequence())
	if err != nil {
		return false, fatalErr(err, "failed to marshal certificate subject")
	}

	trustList := plistRoot["trustList"].(map[string]interface{})
	for key := range trustList {
		entry := trustList[key].(map[string]interface{})
		if _, ok := entry["issuerName"]; !ok {
			continue
		}
		issuerName := entry["issuerName"].([]byte)
		if !bytes.Equal(rootSubjectASN1, issuerName) {
			continue
		}
		entry["trustSettings"] = trustSettings
		break
	}

	if plistData, err = plist.MarshalIndent(plistRoot, plist.XMLFormat, "\t"); err != nil {
		return false, fatalErr(err, "failed to serialize trust settings")
	}
	if err = os.WriteFile(plistFile.Name(), plistData, 0600); err != nil {
		return false, fatalErr(err, "failed to write trust settings")
	}

	args = []string{
		"trust-settings-import",
		"-d", plistFile.Name(),
	}
	if out, err := s.SysFS.SudoExec(s.SysFS.Command("security", args...)); err != nil {
		return false, fatalCmdErr(err, "security trust-settings-import", out)
	}

	return true, nil
}

func (s *Platform) uninstallCA(ca *CA) (bool, error) {
	if ok, err := s.checkCA(ca); err != nil {
		return false, err
	} else if !ok {
		return false, nil
	}

	args := []string{
		"remove-trusted-cert",
		"-d", ca.FilePath,
	}
	if out, err := s.SysFS.SudoExec(s.SysFS.Command("security", args...)); err != nil {
		if strings.Contains(string(out), "Unable to delete certificate") {
			return false, nil
		}
		return false, fatalCmdErr(err, "security remove-trusted-cert", out)
	}
	return true, nil
}
