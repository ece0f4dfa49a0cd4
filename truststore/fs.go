package truststore

import (
	"bytes"
	"io/fs"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"sync"
	"time"
)

// DefaultExecTimeout bounds every external tooling invocation. A timed
// out command is killed and surfaces as an ordinary command failure.
const DefaultExecTimeout = 2 * time.Minute

// CmdFS executes external tooling. SudoExec re-runs the command under
// privilege elevation when the caller is not already root.
type CmdFS interface {
	fs.StatFS

	Command(name string, arg ...string) *exec.Cmd
	Exec(cmd *exec.Cmd) ([]byte, error)
	SudoExec(cmd *exec.Cmd) ([]byte, error)
	LookPath(cmd string) (string, error)
}

type DataFS interface {
	fs.StatFS
	fs.ReadFileFS
}

type FS interface {
	CmdFS
	DataFS
}

func RootFS() FS {
	return RootFSTimeout(DefaultExecTimeout)
}

func RootFSTimeout(timeout time.Duration) FS {
	return &rootFS{
		StatFS:   os.DirFS("/").(fs.StatFS),
		rootPath: "/",

		execTimeout: timeout,
	}
}

type rootFS struct {
	fs.StatFS

	rootPath string

	execTimeout time.Duration

	sudoWarningOnce sync.Once
}

func (r *rootFS) Command(name string, arg ...string) *exec.Cmd {
	path, _ := r.LookPath(name)
	return exec.Command(path, arg...)
}

func (r *rootFS) Exec(cmd *exec.Cmd) ([]byte, error) {
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	timeout := r.execTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	timer := time.AfterFunc(timeout, func() { _ = cmd.Process.Kill() })
	defer timer.Stop()

	err := cmd.Wait()
	return buf.Bytes(), err
}

func (r *rootFS) SudoExec(cmd *exec.Cmd) (out []byte, err error) {
	if u, err := user.Current(); err == nil && u.Uid == "0" {
		return r.Exec(cmd)
	}
	if _, serr := r.LookPath("sudo"); serr != nil {
		defer func() {
			r.sudoWarningOnce.Do(func() {
				err = Error{
					Op: OpSudo,

					Fatal:   err,
					Warning: ErrNoSudo,
				}
			})
		}()

		return r.Exec(cmd)
	}

	sudo := r.Command("sudo", append([]string{"--prompt=Sudo password:", "--"}, cmd.Args...)...)
	sudo.Env = cmd.Env
	sudo.Dir = cmd.Dir
	sudo.Stdin = cmd.Stdin

	return r.Exec(sudo)
}

func (r *rootFS) LookPath(cmd string) (string, error) {
	return exec.LookPath(cmd)
}

func (r *rootFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.rootPath, name))
}
