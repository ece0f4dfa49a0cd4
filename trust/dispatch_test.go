package trust

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"sort"
	"testing"

	"github.com/fastcertdev/fastcert/internal/must"
	"github.com/fastcertdev/fastcert/truststore"
)

var testCA = func() *truststore.CA {
	cert := must.CA(&x509.Certificate{
		Subject: pkix.Name{
			CommonName:   "fastcert test CA",
			Organization: []string{"fastcert"},
		},
		KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	})

	return &truststore.CA{
		Certificate: cert.Leaf,
		FilePath:    "test-ca.pem",
		UniqueName:  cert.Leaf.SerialNumber.Text(16),
	}
}()

type fakeStore struct {
	desc string

	checkErr     error
	present      bool
	installErr   error
	uninstallErr error
}

func (s *fakeStore) Description() string { return s.desc }

func (s *fakeStore) Check() (bool, error) {
	return s.checkErr == nil, s.checkErr
}

func (s *fakeStore) CheckCA(ca *truststore.CA) (bool, error) { return s.present, nil }

func (s *fakeStore) InstallCA(ca *truststore.CA) (bool, error) {
	if s.installErr != nil {
		return false, s.installErr
	}
	if s.present {
		return false, nil
	}
	s.present = true
	return true, nil
}

func (s *fakeStore) UninstallCA(ca *truststore.CA) (bool, error) {
	if s.uninstallErr != nil {
		return false, s.uninstallErr
	}
	if !s.present {
		return false, nil
	}
	s.present = false
	return true, nil
}

func TestInstallCAMockLifecycle(t *testing.T) {
	defer truststore.ResetMockCAs()
	truststore.ResetMockCAs()

	stores := []truststore.Store{new(truststore.Mock)}

	report := InstallCA(context.Background(), testCA, stores)
	if !report.OK() {
		t.Fatalf("want install report ok, got %+v", report.Results)
	}
	if want, got := StatusInstalled, report.Results[0].Status; want != got {
		t.Errorf("want status %q, got %q", want, got)
	}

	report = InstallCA(context.Background(), testCA, stores)
	if want, got := StatusAlreadyTrusted, report.Results[0].Status; want != got {
		t.Errorf("want status %q, got %q", want, got)
	}

	report = UninstallCA(context.Background(), testCA, stores)
	if want, got := StatusUninstalled, report.Results[0].Status; want != got {
		t.Errorf("want status %q, got %q", want, got)
	}

	report = UninstallCA(context.Background(), testCA, stores)
	if want, got := StatusNotPresent, report.Results[0].Status; want != got {
		t.Errorf("want status %q, got %q", want, got)
	}
	if !report.OK() {
		t.Error("want uninstall of absent ca to be ok")
	}
}

func TestInstallCANonCriticalFailure(t *testing.T) {
	defer truststore.ResetMockCAs()
	truststore.ResetMockCAs()

	stores := []truststore.Store{
		new(truststore.Mock),
		&fakeStore{desc: "A broken store", installErr: errors.New("boom")},
	}

	report := InstallCA(context.Background(), testCA, stores)

	if !report.OK() {
		t.Error("want install ok despite non-critical failure")
	}

	var failed *Result
	for i := range report.Results {
		if report.Results[i].Status == StatusFailed {
			failed = &report.Results[i]
		}
	}
	if failed == nil {
		t.Fatal("want one failed result")
	}
	if failed.Critical {
		t.Error("want the broken store to be non-critical")
	}
}

func TestUninstallCAFailureFailsRun(t *testing.T) {
	stores := []truststore.Store{
		&fakeStore{desc: "A broken store", present: true, uninstallErr: errors.New("boom")},
	}

	report := UninstallCA(context.Background(), testCA, stores)

	if report.OK() {
		t.Error("want uninstall to fail when any store fails")
	}
}

func TestDispatchSkipsWarnings(t *testing.T) {
	warn := truststore.Error{
		Op:      truststore.OpCheck,
		Warning: truststore.ErrNoCertutil,
	}

	stores := []truststore.Store{
		&fakeStore{desc: "An unavailable store", checkErr: warn},
	}

	report := InstallCA(context.Background(), testCA, stores)

	if want, got := StatusSkipped, report.Results[0].Status; want != got {
		t.Errorf("want status %q, got %q", want, got)
	}
	if !report.OK() {
		t.Error("want skipped store to not fail the run")
	}
	if len(report.Warnings()) != 1 {
		t.Errorf("want one warning, got %d", len(report.Warnings()))
	}
}

func TestDispatchResultsSorted(t *testing.T) {
	stores := []truststore.Store{
		&fakeStore{desc: "zebra"},
		&fakeStore{desc: "aardvark"},
		&fakeStore{desc: "marmot"},
	}

	report := InstallCA(context.Background(), testCA, stores)

	descs := make([]string, len(report.Results))
	for i, res := range report.Results {
		descs[i] = res.Store.Description()
	}
	if !sort.StringsAreSorted(descs) {
		t.Errorf("want results sorted by description, got %v", descs)
	}
}
