package trust

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/fastcertdev/fastcert"
	"github.com/fastcertdev/fastcert/truststore"
)

// Stores assembles the trust stores selected by cfg.Trust.Stores. NSS
// expands to one store per discovered certificate database; an entry
// that reports a warning from Check is still returned, so the caller
// can render it as skipped.
func Stores(cfg *fastcert.Config) ([]truststore.Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	rootFS := truststore.RootFSTimeout(cfg.Trust.Timeout)

	sysFS := &SudoManager{
		CmdFS:  rootFS,
		NoSudo: cfg.Trust.NoSudo,
	}

	var stores []truststore.Store
	for _, storeName := range cfg.Trust.Stores {
		switch storeName {
		case "system":
			stores = append(stores, &truststore.Platform{
				HomeDir: homeDir,

				DataFS: rootFS,
				SysFS:  sysFS,
			})
		case "nss":
			profiles := truststore.NSSProfiles(rootFS, homeDir)
			if len(profiles) == 0 {
				// keep a placeholder so the report shows why NSS was skipped
				stores = append(stores, &truststore.NSS{
					DataFS: rootFS,
					SysFS:  sysFS,
				})
			}
			for _, profile := range profiles {
				stores = append(stores, &truststore.NSS{
					Profile: profile,

					DataFS: rootFS,
					SysFS:  sysFS,
				})
			}
		case "java":
			if javaStore := truststore.DetectJava(rootFS, sysFS); javaStore != nil {
				stores = append(stores, javaStore)
			} else {
				stores = append(stores, &truststore.Java{
					StorePass: truststore.DefaultStorePass,

					DataFS: rootFS,
					SysFS:  sysFS,
				})
			}
		case "mock":
			stores = append(stores, new(truststore.Mock))
		default:
			return nil, fmt.Errorf("unknown trust store: %q", storeName)
		}
	}

	return stores, nil
}

// SudoManager downgrades SudoExec to a plain Exec when sudo prompts are
// disabled.
type SudoManager struct {
	truststore.CmdFS

	NoSudo bool

	AroundSudo func(sudoExec func())
}

func (s *SudoManager) SudoExec(cmd *exec.Cmd) ([]byte, error) {
	sudoFn := s.CmdFS.SudoExec
	if s.NoSudo {
		sudoFn = s.CmdFS.Exec
	}

	if s.AroundSudo == nil {
		return sudoFn(cmd)
	}

	var (
		out []byte
		err error
	)

	s.AroundSudo(func() {
		out, err = sudoFn(cmd)
	})

	return out, err
}
