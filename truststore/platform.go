package truststore

// Platform wraps the operating system trust store. The per-OS files
// supply check/checkCA/installCA/uninstallCA; the wrappers here attach
// operation context to environmental failures.

func (s *Platform) Check() (bool, error) {
	ok, err := s.check()
	if err != nil {
		err = Error{
			Op: OpCheck,

			Warning: PlatformError{
				Err: err,
			},
		}
	}
	return ok, err
}

func (s *Platform) CheckCA(ca *CA) (installed bool, err error) {
	if _, cerr := s.check(); cerr != nil {
		return false, Error{
			Op: OpCheck,

			Warning: PlatformError{
				Err: cerr,

				RootCA: ca.FilePath,
			},
		}
	}

	return s.checkCA(ca)
}

func (s *Platform) InstallCA(ca *CA) (installed bool, err error) {
	if _, cerr := s.check(); cerr != nil {
		return false, Error{
			Op: OpInstall,

			Warning: PlatformError{
				Err: cerr,

				RootCA: ca.FilePath,
			},
		}
	}

	return s.installCA(ca)
}

func (s *Platform) UninstallCA(ca *CA) (uninstalled bool, err error) {
	if _, cerr := s.check(); cerr != nil {
		return false, Error{
			Op: OpUninstall,

			Warning: PlatformError{
				Err: cerr,

				RootCA: ca.FilePath,
			},
		}
	}

	return s.uninstallCA(ca)
}
