package ioutils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Leading and trailing whitespace → removed
//   - Unicode → NFC, so names built from decomposed titles compare equal
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2")      // Returns "Song_ Part 1_2"
//	SanitizeFileName("Track...")            // Returns "Track"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return norm.NFC.String(strings.TrimSpace(name))
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Workspace is a temporary directory owned by one batch.
//
// Every item gets its own subdirectory so concurrent downloads never see each
// other's files. Release removes everything and is safe to call more than
// once; callers defer it right after NewWorkspace.
//
// Example:
//
//	ws, err := ioutils.NewWorkspace("", "audiobatch-")
//	if err != nil {
//	    return err
//	}
//	defer ws.Release()
//	dir, _ := ws.ItemDir(0) // <root>/item-0001
type Workspace struct {
	root    string
	once    sync.Once
	release error
}

// NewWorkspace creates a fresh directory under parent (os.TempDir if empty).
func NewWorkspace(parent, prefix string) (*Workspace, error) {
	if parent != "" {
		if err := EnsureDir(parent); err != nil {
			return nil, fmt.Errorf("create work directory: %w", err)
		}
	}
	root, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// ItemDir returns (and creates) the private directory for item index.
func (w *Workspace) ItemDir(index int) (string, error) {
	dir := filepath.Join(w.root, fmt.Sprintf("item-%04d", index+1))
	if err := EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create item directory: %w", err)
	}
	return dir, nil
}

// Release deletes the workspace and everything in it.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.release = os.RemoveAll(w.root)
	})
	return w.release
}

// AtomicFile writes to a temporary sibling and renames it into place on
// Commit, so readers never observe a half-written file.
type AtomicFile struct {
	*os.File
	target string
	done   bool
}

// CreateAtomic opens a temporary file next to path.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{File: f, target: path}, nil
}

// Commit closes the temporary file and renames it to the target path.
func (a *AtomicFile) Commit() error {
	if a.done {
		return nil
	}
	a.done = true
	if err := a.File.Close(); err != nil {
		_ = os.Remove(a.File.Name())
		return err
	}
	if err := os.Rename(a.File.Name(), a.target); err != nil {
		_ = os.Remove(a.File.Name())
		return err
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	_ = a.File.Close()
	_ = os.Remove(a.File.Name())
}

// WriteFileAtomic writes data to path through an AtomicFile.
func WriteFileAtomic(path string, data []byte) error {
	f, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}
