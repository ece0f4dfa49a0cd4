package cert

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

// HostKind discriminates the identifier types a certificate can carry
// in its subject alternative names.
type HostKind int

const (
	KindDNS HostKind = iota
	KindWildcardDNS
	KindIP
	KindEmail
	KindURI
)

func (k HostKind) String() string {
	switch k {
	case KindDNS:
		return "DNS"
	case KindWildcardDNS:
		return "wildcard DNS"
	case KindIP:
		return "IP"
	case KindEmail:
		return "email"
	case KindURI:
		return "URI"
	}
	return fmt.Sprintf("HostKind(%d)", int(k))
}

// HostIdentifier is one classified host string. Value retains the
// input spelling, so a round trip through a certificate's SAN list
// reproduces the request exactly.
type HostIdentifier struct {
	Kind  HostKind
	Value string
}

// labels of letters, digits, hyphen, or underscore, separated by dots,
// with at most one leading wildcard label
var hostnameRegexp = regexp.MustCompile(`(?i)^(\*\.)?[0-9a-z_-]+(\.[0-9a-z_-]+)*$`)

type InvalidHostnameError struct {
	Host string
}

func (e InvalidHostnameError) Error() string {
	return fmt.Sprintf("invalid hostname: %q", e.Host)
}

// Classify resolves a host string to exactly one identifier kind. The
// mapping is structural and total: parseable IPs win, then emails,
// then URIs, then DNS names, wildcard or plain.
func Classify(host string) HostIdentifier {
	if ip := net.ParseIP(host); ip != nil {
		return HostIdentifier{Kind: KindIP, Value: host}
	}
	if strings.Contains(host, "@") {
		if _, err := mail.ParseAddress(host); err == nil {
			return HostIdentifier{Kind: KindEmail, Value: host}
		}
	}
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Scheme != "" && u.Host != "" {
			return HostIdentifier{Kind: KindURI, Value: host}
		}
	}
	if strings.HasPrefix(host, "*.") {
		return HostIdentifier{Kind: KindWildcardDNS, Value: host}
	}
	return HostIdentifier{Kind: KindDNS, Value: host}
}

// Validate checks the syntax of a classified identifier. Only DNS and
// wildcard identifiers carry syntax of their own; the other kinds were
// already parsed structurally during classification.
func (h HostIdentifier) Validate() error {
	switch h.Kind {
	case KindDNS, KindWildcardDNS:
		if !hostnameRegexp.MatchString(h.Value) {
			return InvalidHostnameError{Host: h.Value}
		}
	}
	return nil
}

// ClassifyAll classifies and validates every host, aborting on the
// first invalid one.
func ClassifyAll(hosts []string) ([]HostIdentifier, error) {
	ids := make([]HostIdentifier, 0, len(hosts))
	for _, host := range hosts {
		id := Classify(host)
		if err := id.Validate(); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
