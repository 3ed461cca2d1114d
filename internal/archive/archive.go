package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/handiism/audiobatch/internal/model"
)

// ErrNoSuccesses is wrapped by AssemblyError when there is nothing to pack.
var ErrNoSuccesses = errors.New("no successful items to archive")

// AssemblyError reports why an archive could not be built.
type AssemblyError struct {
	// Path is the artifact that could not be read, empty when the batch had
	// no successes.
	Path string
	Err  error
}

func (e *AssemblyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("assemble archive: %v", e.Err)
	}
	return fmt.Sprintf("assemble archive: read %s: %v", e.Path, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Entry maps an artifact on disk to its name inside the archive.
type Entry struct {
	Name string
	Path string
	Item model.ItemDescriptor
}

// Plan returns the archive entries for successes, in the given order.
//
// Entry names are artifact base names. When two artifacts share a base name
// (compared case-insensitively) the later one is renamed "Name (2).ext",
// "Name (3).ext" and so on, so no entry is silently overwritten on
// extraction.
func Plan(successes []model.Outcome) []Entry {
	taken := make(map[string]bool, len(successes))
	entries := make([]Entry, 0, len(successes))
	for _, o := range successes {
		name := uniqueName(filepath.Base(o.ArtifactPath), taken)
		entries = append(entries, Entry{Name: name, Path: o.ArtifactPath, Item: o.Item})
	}
	return entries
}

func uniqueName(base string, taken map[string]bool) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for n := 2; taken[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	taken[strings.ToLower(name)] = true
	return name
}

// Write streams a flat zip of successes to w.
//
// Every success becomes exactly one entry at the archive root with content
// byte-identical to the artifact. Source files are neither modified nor
// removed. Errors are *AssemblyError.
func Write(w io.Writer, successes []model.Outcome) error {
	if len(successes) == 0 {
		return &AssemblyError{Err: ErrNoSuccesses}
	}

	zw := zip.NewWriter(w)
	for _, entry := range Plan(successes) {
		if err := addFile(zw, entry); err != nil {
			return &AssemblyError{Path: entry.Path, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return &AssemblyError{Err: err}
	}
	return nil
}

// Assemble builds the archive in memory.
func Assemble(successes []model.Outcome) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, successes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, entry Entry) error {
	f, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = entry.Name
	// transcoded audio does not compress further
	header.Method = zip.Store

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, f)
	return err
}
