package tsemitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/helloweilei/ropenapi/internal/spec"
)

// ErrOutputExists is returned when a target file exists and Force is off.
var ErrOutputExists = errors.New("output file already exists")

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files.
type Result struct {
	OutDir  string
	Planned []PlannedFile
}

// Emit renders the specification and writes it under opts.OutDir, unless
// DryRun is set. Existing target files are only replaced with Force.
func Emit(ctx context.Context, s *spec.Specification, opts Options) (*Result, error) {
	if s == nil {
		return nil, errors.New("tsemitter: nil Specification")
	}
	if opts.OutDir == "" {
		return nil, errors.New("tsemitter: OutDir is required")
	}
	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("resolve out dir: %w", err)
	}

	files, err := Generate(s, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{OutDir: abs, Planned: make([]PlannedFile, 0, len(files))}
	for _, f := range files {
		res.Planned = append(res.Planned, PlannedFile{RelPath: f.Path, Size: len(f.Content), Mode: 0o644})
	}
	if opts.DryRun {
		return res, nil
	}
	if err := writeFiles(ctx, abs, files, opts.Force); err != nil {
		return nil, err
	}
	return res, nil
}

func writeFiles(ctx context.Context, outDir string, files []File, force bool) error {
	// Pre-flight so a refusal never leaves a partial tree behind.
	if !force {
		for _, f := range files {
			p := filepath.Join(outDir, filepath.FromSlash(f.Path))
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("tsemitter: %s: %w (use --force to overwrite)", p, ErrOutputExists)
			}
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(outDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		if err := writeAtomic(p, f.Content); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// writeAtomic writes via a temp file in the target directory and renames
// it into place.
func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
