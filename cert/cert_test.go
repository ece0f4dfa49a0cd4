package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/fastcertdev/fastcert/ca"
	"github.com/fastcertdev/fastcert/internal/must"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

func testAuthority(t *testing.T) *ca.CA {
	t.Helper()

	root := must.CA(&x509.Certificate{
		Subject: pkix.Name{
			CommonName:   "fastcert test CA",
			Organization: []string{"fastcert"},
		},
		KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	})

	return &ca.CA{
		Certificate: root.Leaf,
		Key:         root.PrivateKey.(crypto.Signer),
	}
}

func TestIssueSANOrder(t *testing.T) {
	iss := &Issuer{CA: testAuthority(t)}

	hosts := []string{"example.com", "127.0.0.1", "*.internal.test"}

	leaf, err := iss.Issue(Request{Hosts: hosts})
	if err != nil {
		t.Fatal(err)
	}

	ids, err := SubjectAltNames(leaf.Certificate)
	if err != nil {
		t.Fatal(err)
	}

	var values []string
	for _, id := range ids {
		values = append(values, id.Value)
	}
	if !slices.Equal(hosts, values) {
		t.Errorf("want SAN order %v, got %v", hosts, values)
	}

	kinds := []HostKind{KindDNS, KindIP, KindWildcardDNS}
	for i, id := range ids {
		if want, got := kinds[i], id.Kind; want != got {
			t.Errorf("SAN %d: want kind %v, got %v", i, want, got)
		}
	}

	if want, got := "example.com", leaf.Certificate.Subject.CommonName; want != got {
		t.Errorf("want common name %q, got %q", want, got)
	}

	wantEKU := []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	if !slices.Equal(wantEKU, leaf.Certificate.ExtKeyUsage) {
		t.Errorf("want extended key usage %v, got %v", wantEKU, leaf.Certificate.ExtKeyUsage)
	}
}

func TestIssueRoundTripAllKinds(t *testing.T) {
	iss := &Issuer{CA: testAuthority(t)}

	hosts := []string{"dev@example.com", "example.com", "https://example.com/app", "::1", "*.example.com"}

	leaf, err := iss.Issue(Request{Hosts: hosts})
	if err != nil {
		t.Fatal(err)
	}

	ids, err := SubjectAltNames(leaf.Certificate)
	if err != nil {
		t.Fatal(err)
	}

	var values []string
	for _, id := range ids {
		values = append(values, id.Value)
	}
	if !slices.Equal(hosts, values) {
		t.Errorf("want round-tripped hosts %v, got %v", hosts, values)
	}
}

func TestIssueClientEKU(t *testing.T) {
	iss := &Issuer{CA: testAuthority(t)}

	leaf, err := iss.Issue(Request{Hosts: []string{"example.com"}, Client: true})
	if err != nil {
		t.Fatal(err)
	}

	want := []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	if !slices.Equal(want, leaf.Certificate.ExtKeyUsage) {
		t.Errorf("want extended key usage %v, got %v", want, leaf.Certificate.ExtKeyUsage)
	}
}

func TestIssueKeyAlgorithms(t *testing.T) {
	iss := &Issuer{CA: testAuthority(t)}

	leaf, err := iss.Issue(Request{Hosts: []string{"example.com"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := leaf.PrivateKey.(*rsa.PrivateKey); !ok {
		t.Errorf("want RSA key by default, got %T", leaf.PrivateKey)
	}
	if want, got := x509.KeyUsageDigitalSignature|x509.KeyUsageKeyEncipherment, leaf.Certificate.KeyUsage; want != got {
		t.Errorf("want key usage %v, got %v", want, got)
	}

	leaf, err = iss.Issue(Request{Hosts: []string{"example.com"}, ECDSA: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := leaf.PrivateKey.(*ecdsa.PrivateKey); !ok {
		t.Errorf("want ECDSA key, got %T", leaf.PrivateKey)
	}
	if want, got := x509.KeyUsageDigitalSignature, leaf.Certificate.KeyUsage; want != got {
		t.Errorf("want key usage %v, got %v", want, got)
	}
}

func TestIssuePKCS12(t *testing.T) {
	authority := testAuthority(t)
	iss := &Issuer{CA: authority}

	leaf, err := iss.Issue(Request{Hosts: []string{"example.com"}, PKCS12: true})
	if err != nil {
		t.Fatal(err)
	}
	if leaf.PKCS12 == nil {
		t.Fatal("want PKCS#12 bundle")
	}

	key, cert, chain, err := pkcs12.DecodeChain(leaf.PKCS12, "")
	if err != nil {
		t.Fatal(err)
	}
	if key == nil {
		t.Error("want private key in bundle")
	}
	if !cert.Equal(leaf.Certificate) {
		t.Error("want leaf certificate in bundle")
	}
	if len(chain) != 1 || !chain[0].Equal(authority.Certificate) {
		t.Error("want CA certificate in bundle chain")
	}
}

func TestIssueInvalidHostAborts(t *testing.T) {
	iss := &Issuer{CA: testAuthority(t)}

	_, err := iss.Issue(Request{Hosts: []string{"example.com", "bad..host"}})

	var herr InvalidHostnameError
	if !errors.As(err, &herr) {
		t.Fatalf("want InvalidHostnameError, got %v", err)
	}
}

func TestIssueVerifiesAgainstCA(t *testing.T) {
	authority := testAuthority(t)
	iss := &Issuer{CA: authority}

	leaf, err := iss.Issue(Request{Hosts: []string{"example.com"}})
	if err != nil {
		t.Fatal(err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(authority.Certificate)

	if _, err := leaf.Certificate.Verify(x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}); err != nil {
		t.Errorf("want leaf to verify against the issuing CA: %v", err)
	}
}

func TestLeafFiles(t *testing.T) {
	tests := []struct {
		hosts  []string
		client bool

		cert, key, p12 string
	}{
		{
			hosts: []string{"example.com"},
			cert:  "example.com.pem", key: "example.com-key.pem", p12: "example.com.p12",
		},
		{
			hosts: []string{"*.wildcard.local"},
			cert:  "_wildcard.wildcard.local.pem", key: "_wildcard.wildcard.local-key.pem", p12: "_wildcard.wildcard.local.p12",
		},
		{
			hosts: []string{"example.com", "localhost", "127.0.0.1"},
			cert:  "example.com+2.pem", key: "example.com+2-key.pem", p12: "example.com+2.p12",
		},
		{
			hosts: []string{"2001:db8::1"},
			cert:  "2001_db8__1.pem", key: "2001_db8__1-key.pem", p12: "2001_db8__1.p12",
		},
		{
			hosts: []string{"example.com"}, client: true,
			cert: "example.com-client.pem", key: "example.com-client-key.pem", p12: "example.com-client.p12",
		},
	}

	for _, test := range tests {
		leaf := &Leaf{hosts: test.hosts}
		cert, key, p12 := leaf.Files("out", test.client)

		if want := filepath.Join("out", test.cert); want != cert {
			t.Errorf("hosts %v: want cert file %q, got %q", test.hosts, want, cert)
		}
		if want := filepath.Join("out", test.key); want != key {
			t.Errorf("hosts %v: want key file %q, got %q", test.hosts, want, key)
		}
		if want := filepath.Join("out", test.p12); want != p12 {
			t.Errorf("hosts %v: want p12 file %q, got %q", test.hosts, want, p12)
		}
	}
}
