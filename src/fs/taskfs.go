// Package fs provides an afero.Fs that anchors relative paths at a task
// directory, so tools see the same view regardless of the process cwd.
package fs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/stewardhq/steward/src/stewardagent/toolsutil"
)

// TaskFs resolves relative paths against a fixed root directory.
type TaskFs struct {
	afero.Fs
	root string
}

// NewTaskFs wraps base so that relative paths resolve under root. An empty
// root leaves paths untouched.
func NewTaskFs(base afero.Fs, root string) *TaskFs {
	return &TaskFs{Fs: base, root: root}
}

// ForTask roots base at env's task directory. A "." task dir means the
// environment has no dedicated directory and base is returned unwrapped.
func ForTask(base afero.Fs, env toolsutil.TaskEnv) afero.Fs {
	dir := env.TaskDir()
	if dir == "" || dir == "." {
		return base
	}
	return NewTaskFs(base, dir)
}

func (t *TaskFs) resolve(path string) string {
	if path == "" {
		if t.root == "" {
			return "."
		}
		return t.root
	}
	if filepath.IsAbs(path) || t.root == "" {
		return path
	}
	return filepath.Join(t.root, path)
}

func (t *TaskFs) Open(name string) (afero.File, error) {
	return t.Fs.Open(t.resolve(name))
}

func (t *TaskFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	return t.Fs.OpenFile(t.resolve(name), flag, perm)
}

func (t *TaskFs) Create(name string) (afero.File, error) {
	return t.Fs.Create(t.resolve(name))
}

func (t *TaskFs) Remove(name string) error {
	return t.Fs.Remove(t.resolve(name))
}

func (t *TaskFs) RemoveAll(path string) error {
	return t.Fs.RemoveAll(t.resolve(path))
}

func (t *TaskFs) Rename(oldname, newname string) error {
	return t.Fs.Rename(t.resolve(oldname), t.resolve(newname))
}

func (t *TaskFs) Stat(name string) (os.FileInfo, error) {
	return t.Fs.Stat(t.resolve(name))
}

func (t *TaskFs) Mkdir(name string, perm os.FileMode) error {
	return t.Fs.Mkdir(t.resolve(name), perm)
}

func (t *TaskFs) MkdirAll(path string, perm os.FileMode) error {
	return t.Fs.MkdirAll(t.resolve(path), perm)
}

func (t *TaskFs) Chmod(name string, mode os.FileMode) error {
	return t.Fs.Chmod(t.resolve(name), mode)
}

// Root returns the directory relative paths resolve under.
func (t *TaskFs) Root() string {
	return t.root
}
