package truststore

import "slices"

var MockCAs []*CA

func ResetMockCAs() { MockCAs = []*CA{} }

// Mock is an in-process store for tests and dry runs. Installed CAs are
// matched by fingerprint, like the real stores.
type Mock struct{}

func (Mock) Description() string { return "Mock" }

func (Mock) Check() (bool, error) { return true, nil }

func (Mock) CheckCA(ca *CA) (bool, error) {
	for _, ca2 := range MockCAs {
		if Fingerprint(ca.Certificate) == Fingerprint(ca2.Certificate) {
			return true, nil
		}
	}
	return false, nil
}

func (Mock) InstallCA(ca *CA) (bool, error) {
	if ok, _ := (Mock{}).CheckCA(ca); ok {
		return false, nil
	}
	MockCAs = append(MockCAs, ca)
	return true, nil
}

func (Mock) UninstallCA(ca *CA) (bool, error) {
	before := len(MockCAs)
	MockCAs = slices.DeleteFunc(MockCAs, func(ca2 *CA) bool {
		return Fingerprint(ca.Certificate) == Fingerprint(ca2.Certificate)
	})
	return len(MockCAs) != before, nil
}
