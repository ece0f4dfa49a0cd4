package truststore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func testJava(sysFS CmdFS) (*Java, string) {
	javaHome := filepath.Join("opt", "jdk")

	dataFS := TestFS{
		filepath.Join(javaHome, "lib/security/cacerts"): &fstest.MapFile{},
	}

	return &Java{
		JavaHomeDir: javaHome,
		StorePass:   DefaultStorePass,

		DataFS: dataFS,
		SysFS:  sysFS,
	}, filepath.Join(javaHome, "lib/security/cacerts")
}

// colonized renders a fingerprint the way keytool prints it.
func colonized(fp string) string {
	var pairs []string
	for i := 0; i < len(fp); i += 2 {
		pairs = append(pairs, fp[i:i+2])
	}
	return strings.Join(pairs, ":")
}

func TestJavaCheckCA(t *testing.T) {
	sum := sha256.Sum256(ca.Certificate.Raw)
	fp := strings.ToUpper(hex.EncodeToString(sum[:]))

	keytool := filepath.Join("opt", "jdk", "bin", "keytool")

	sysFS := &testCmdFS{binos: map[string]bool{keytool: true}}
	store, cacerts := testJava(sysFS)

	listKey := strings.Join([]string{
		keytool, "-list",
		"-keystore", cacerts,
		"-storepass", DefaultStorePass,
	}, " ")

	sysFS.outs = map[string]string{
		listKey: "mycorpca, Jan 1, 2026, trustedCertEntry,\n" +
			"Certificate fingerprint (SHA-256): " + colonized(fp) + "\n",
	}

	if ok, err := store.CheckCA(ca); err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Error("want ca found in keytool listing")
	}

	sysFS.outs[listKey] = "otherca, Jan 1, 2026, trustedCertEntry,\n" +
		"Certificate fingerprint (SHA-256): AA:BB:CC\n"

	if ok, err := store.CheckCA(ca); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("want ca absent from keytool listing")
	}
}

func TestJavaUninstallCAAbsent(t *testing.T) {
	keytool := filepath.Join("opt", "jdk", "bin", "keytool")

	sysFS := &testCmdFS{binos: map[string]bool{keytool: true}}
	store, cacerts := testJava(sysFS)

	deleteKey := strings.Join([]string{
		keytool, "-delete",
		"-alias", ca.UniqueName,
		"-keystore", cacerts,
		"-storepass", DefaultStorePass,
	}, " ")

	sysFS.outs = map[string]string{
		deleteKey: "keytool error: java.lang.Exception: Alias <" + ca.UniqueName + "> does not exist",
	}
	sysFS.errs = map[string]error{
		deleteKey: errors.New("exit status 1"),
	}

	if ok, err := store.UninstallCA(ca); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("want uninstall of absent alias to be a no-op")
	}
}

func TestJavaMissingKeytool(t *testing.T) {
	sysFS := &testCmdFS{binos: map[string]bool{}}
	store, _ := testJava(sysFS)

	_, err := store.CheckCA(ca)

	var terr Error
	if !errors.As(err, &terr) || !errors.Is(terr.Warning, ErrNoKeytool) {
		t.Errorf("want ErrNoKeytool warning, got %v", err)
	}
}

func TestDetectJavaUnset(t *testing.T) {
	t.Setenv("JAVA_HOME", "")

	if s := DetectJava(TestFS{}, &testCmdFS{}); s != nil {
		t.Errorf("want nil store without JAVA_HOME, got %+v", s)
	}
}
