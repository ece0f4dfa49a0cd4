package trust

import (
	"context"
	"errors"
	"sort"

	"github.com/fastcertdev/fastcert/truststore"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusInstalled      Status = "installed"
	StatusUninstalled    Status = "uninstalled"
	StatusAlreadyTrusted Status = "already trusted"
	StatusNotPresent     Status = "not present"
	StatusSkipped        Status = "skipped"
	StatusFailed         Status = "failed"
)

// Result is the outcome of one store operation. Critical marks stores
// whose failure fails the whole run, currently the OS store.
type Result struct {
	Store    truststore.Store
	Critical bool

	Status Status
	Err    error
}

type Report struct {
	Op truststore.Op

	Results []Result
}

// OK reports overall success. Installs tolerate failures in
// non-critical stores, browsers and Java runtimes may be absent or
// broken without making the CA unusable. Uninstalls tolerate none: a
// CA left behind anywhere is still trusted there.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if res.Status != StatusFailed {
			continue
		}
		if r.Op == truststore.OpUninstall || res.Critical {
			return false
		}
	}
	return true
}

func (r *Report) Warnings() []Result {
	var warnings []Result
	for _, res := range r.Results {
		if res.Status == StatusSkipped || (res.Status == StatusFailed && res.Err != nil) {
			warnings = append(warnings, res)
		}
	}
	return warnings
}

// InstallCA installs ca into every store concurrently. Results come
// back sorted by store description so output is deterministic.
func InstallCA(ctx context.Context, ca *truststore.CA, stores []truststore.Store) *Report {
	return dispatch(ctx, truststore.OpInstall, ca, stores, installOne)
}

// UninstallCA removes ca from every store concurrently.
func UninstallCA(ctx context.Context, ca *truststore.CA, stores []truststore.Store) *Report {
	return dispatch(ctx, truststore.OpUninstall, ca, stores, uninstallOne)
}

func dispatch(ctx context.Context, op truststore.Op, ca *truststore.CA, stores []truststore.Store, fn func(truststore.Store, *truststore.CA) (Status, error)) *Report {
	report := &Report{
		Op: op,

		Results: make([]Result, len(stores)),
	}

	grp, ctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		i, store := i, store

		grp.Go(func() error {
			result := Result{
				Store:    store,
				Critical: isCritical(store),
			}

			select {
			case <-ctx.Done():
				result.Status, result.Err = StatusSkipped, ctx.Err()
			default:
				result.Status, result.Err = fn(store, ca)
			}

			report.Results[i] = result
			return nil
		})
	}
	_ = grp.Wait()

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Store.Description() < report.Results[j].Store.Description()
	})

	return report
}

func installOne(store truststore.Store, ca *truststore.CA) (Status, error) {
	if ok, err := store.Check(); err != nil || !ok {
		return checkStatus(err)
	}

	if ok, err := store.CheckCA(ca); err != nil {
		return failStatus(err)
	} else if ok {
		return StatusAlreadyTrusted, nil
	}

	ok, err := store.InstallCA(ca)
	if err != nil {
		return failStatus(err)
	}
	if !ok {
		return StatusAlreadyTrusted, nil
	}
	return StatusInstalled, nil
}

func uninstallOne(store truststore.Store, ca *truststore.CA) (Status, error) {
	if ok, err := store.Check(); err != nil || !ok {
		return checkStatus(err)
	}

	ok, err := store.UninstallCA(ca)
	if err != nil {
		return failStatus(err)
	}
	if !ok {
		return StatusNotPresent, nil
	}
	return StatusUninstalled, nil
}

func checkStatus(err error) (Status, error) {
	if err == nil {
		return StatusSkipped, nil
	}
	if isWarning(err) {
		return StatusSkipped, err
	}
	return StatusFailed, err
}

func failStatus(err error) (Status, error) {
	if isWarning(err) {
		return StatusSkipped, err
	}
	return StatusFailed, err
}

func isWarning(err error) bool {
	var terr truststore.Error
	return errors.As(err, &terr) && terr.Warning != nil && terr.Fatal == nil
}

func isCritical(store truststore.Store) bool {
	switch store.(type) {
	case *truststore.Platform:
		return true
	case truststore.Mock, *truststore.Mock:
		return true
	}
	return false
}
