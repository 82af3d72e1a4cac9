package registry

import (
	"os"
	"path/filepath"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/common"

	"github.com/spf13/afero"
)

// LoadOptions describes where a module's declaration documents live.
type LoadOptions struct {
	Inputs []string
	// Combine means every input is itself a resources directory root.
	Combine bool
	// StartID is the numeric start-id override; it excludes per-input declarations.
	StartID int64
	// System loads inputs into the system namespace.
	System bool
	// IDDefinedInput replaces all application declarations when set.
	IDDefinedInput string
	// SysIDDefinedPath is the tool-level system declaration document.
	SysIDDefinedPath string
}

// DeclarationPath returns where an input keeps its declaration document.
func DeclarationPath(input string, combine bool) string {
	if combine {
		return filepath.Join(input, internal.IDDefinedFile)
	}
	return filepath.Join(input, internal.ResourcesDir, internal.BaseDir, internal.ElementDir, internal.IDDefinedFile)
}

// LoadModule ingests every declaration document relevant to one module build.
// Missing documents are skipped.
func (r *Registry) LoadModule(fs afero.Fs, opts LoadOptions) error {
	for _, input := range opts.Inputs {
		path := DeclarationPath(input, opts.Combine)
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return common.WrapError(err, "failed to stat %s", path)
		}
		if exists && opts.StartID > 0 {
			return common.NewConfigurationError("the start id and %s cannot be used together (%s)", internal.IDDefinedFile, path)
		}
		if err := r.LoadFile(fs, path, opts.System); err != nil {
			return err
		}
	}
	if opts.System {
		return nil
	}

	if opts.IDDefinedInput != "" {
		r.ResetApp()
		if err := r.LoadFile(fs, opts.IDDefinedInput, false); err != nil {
			return err
		}
	}
	if opts.SysIDDefinedPath != "" {
		if err := r.LoadFile(fs, opts.SysIDDefinedPath, true); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile ingests the document at path if it exists.
func (r *Registry) LoadFile(fs afero.Fs, path string, system bool) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return common.WrapError(err, "failed to read %s", path)
	}
	r.logger.Debug().Str("path", path).Bool("system", system).Msg("Loading id declarations")
	if err := r.Ingest(data, system); err != nil {
		return common.WithSource(err, path)
	}
	return nil
}
