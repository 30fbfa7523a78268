package persistence

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hupe1980/vecgraph/internal/fs"
)

// File is one entry of an atomic directory save.
type File struct {
	Name  string
	Write func(io.Writer) error
}

// AtomicSaveToDir writes files into dir so that a crash leaves either the
// previous generation or the complete new one. fsys may be nil.
func AtomicSaveToDir(ctx context.Context, fsys fs.FileSystem, dir string, files ...File) error {
	if fsys == nil {
		fsys = fs.Default
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: create directory %s: %w", dir, err)
	}

	temps := make([]string, 0, len(files))
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, tmp := range temps {
			_ = fsys.Remove(tmp)
		}
	}()

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		tmp, err := fsys.CreateTemp(dir, f.Name+".tmp-*")
		if err != nil {
			return fmt.Errorf("persistence: create temp file for %s: %w", f.Name, err)
		}
		temps = append(temps, tmp.Name())

		if err := f.Write(tmp); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("persistence: write %s: %w", f.Name, err)
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("persistence: sync %s: %w", f.Name, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("persistence: close %s: %w", f.Name, err)
		}
	}

	for i, f := range files {
		if err := fsys.Rename(temps[i], filepath.Join(dir, f.Name)); err != nil {
			return fmt.Errorf("persistence: rename %s: %w", f.Name, err)
		}
	}
	committed = true

	// Best effort: not every platform can fsync a directory.
	if d, err := fsys.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}
