package store

import (
	"io/fs"
	"os"
)

// FileSystem is the slice of file operations the local-file store needs.
// Tests swap in MockFileSystem to inject failures at each step of a save.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)

	// WriteFile must not return before data is durable on disk.
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Rename replaces newpath with oldpath in one step.
	Rename(oldpath, newpath string) error

	Remove(name string) error
	MkdirAll(path string, perm fs.FileMode) error
}

// OSFileSystem is the FileSystem backed by the os package.
type OSFileSystem struct{}

// ReadFile implements FileSystem.ReadFile
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile implements FileSystem.WriteFile. The file is fsynced before
// it is closed so a subsequent rename never exposes a truncated file.
func (OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Rename implements FileSystem.Rename
func (OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Remove implements FileSystem.Remove
func (OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

// MkdirAll implements FileSystem.MkdirAll
func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}
