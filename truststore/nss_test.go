package truststore

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseCertNick(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"my-ca                              C,,", "my-ca"},
		{"fastcert development CA 1a2b3c     C,,", "fastcert development CA 1a2b3c"},
		{"spaced nick                        CT,C,C", "spaced nick"},
		{"Certificate Nickname                Trust Attributes", ""},
		{"", ""},
	}

	for _, test := range tests {
		if want, got := test.want, parseCertNick(test.line); want != got {
			t.Errorf("parseCertNick(%q): want %q, got %q", test.line, want, got)
		}
	}
}

func TestNSSProfiles(t *testing.T) {
	dataFS := TestFS{
		"home/u/.pki/nssdb/cert9.db": &fstest.MapFile{},
		"etc/pki/nssdb/cert8.db":     &fstest.MapFile{},
	}

	profiles := NSSProfiles(dataFS, "home/u")

	want := []string{"sql:home/u/.pki/nssdb", "dbm:/etc/pki/nssdb"}
	if len(profiles) != len(want) {
		t.Fatalf("want profiles %v, got %v", want, profiles)
	}
	for i := range want {
		if want[i] != profiles[i] {
			t.Errorf("want profile %q, got %q", want[i], profiles[i])
		}
	}
}

func TestNSSCheck(t *testing.T) {
	sysFS := &testCmdFS{binos: map[string]bool{}}

	store := &NSS{Profile: "sql:home/u/.pki/nssdb", DataFS: TestFS{}, SysFS: sysFS}

	if ok, err := store.Check(); ok {
		t.Error("want check to fail without certutil")
	} else {
		var terr Error
		if !errors.As(err, &terr) || terr.Warning == nil {
			t.Errorf("want warning-class error, got %v", err)
		}
		if !errors.Is(terr.Warning, ErrNoCertutil) {
			t.Errorf("want ErrNoCertutil, got %v", terr.Warning)
		}
	}

	sysFS = &testCmdFS{binos: map[string]bool{"certutil": true}}
	store = &NSS{Profile: "sql:home/u/.pki/nssdb", DataFS: TestFS{}, SysFS: sysFS}

	if ok, err := store.Check(); !ok || err != nil {
		t.Errorf("want check ok with certutil present, got (%v, %v)", ok, err)
	}
}

func TestNSSCheckCA(t *testing.T) {
	profile := "sql:home/u/.pki/nssdb"

	listing := strings.Join([]string{
		"Certificate Nickname                                         Trust Attributes",
		"                                                             SSL,S/MIME,JAR/XPI",
		"",
		"fastcert development CA " + ca.UniqueName + "                C,,",
		"unrelated ca                                                 C,,",
	}, "\n")

	nick := "fastcert development CA " + ca.UniqueName

	sysFS := &testCmdFS{
		binos: map[string]bool{"certutil": true},
		outs: map[string]string{
			"certutil -L -d " + profile:                        listing,
			"certutil -L -d " + profile + " -n " + nick + " -a": string(pemBytes(ca)),
		},
		errs: map[string]error{
			"certutil -L -d " + profile + " -n unrelated ca -a": errors.New("exit status 255"),
		},
	}

	store := &NSS{Profile: profile, DataFS: TestFS{}, SysFS: sysFS}

	if ok, err := store.CheckCA(ca); err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Error("want ca found by fingerprint")
	}
}

func TestNSSCheckCAEmptyDB(t *testing.T) {
	profile := "sql:home/u/.pki/nssdb"

	sysFS := &testCmdFS{
		binos: map[string]bool{"certutil": true},
		outs: map[string]string{
			"certutil -L -d " + profile: strings.Join([]string{
				"Certificate Nickname                                         Trust Attributes",
				"                                                             SSL,S/MIME,JAR/XPI",
				"",
			}, "\n"),
		},
	}

	store := &NSS{Profile: profile, DataFS: TestFS{}, SysFS: sysFS}

	if ok, err := store.CheckCA(ca); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("want ca absent in empty database")
	}
}

func TestNSSUninstallCAAbsent(t *testing.T) {
	profile := "sql:home/u/.pki/nssdb"

	sysFS := &testCmdFS{
		binos: map[string]bool{"certutil": true},
		outs: map[string]string{
			"certutil -L -d " + profile: "",
		},
		errs: map[string]error{
			"certutil -L -d " + profile: errors.New("exit status 255"),
		},
	}
	sysFS.outs["certutil -L -d "+profile] = certutilPRFileNotFoundOutput

	store := &NSS{Profile: profile, DataFS: TestFS{}, SysFS: sysFS}

	if ok, err := store.UninstallCA(ca); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("want uninstall of absent ca to be a no-op")
	}
}
