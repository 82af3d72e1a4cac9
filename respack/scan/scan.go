// Package scan discovers file based resources (media and profile) in module
// resource directories.
package scan

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/assets"
	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/registry"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Options configures a Scanner.
type Options struct {
	// ModuleName prefixes the module relative path stored as each item's payload.
	ModuleName string
	// Output is the build output directory copy jobs point into.
	Output string
	Mode   resource.PackMode
	// Ignore holds gitignore style patterns matched against paths relative to
	// the resources directory.
	Ignore []string
}

// Result is everything one scan found.
type Result struct {
	Items []resource.Item
	// Jobs copy each scanned file into the output.
	Jobs []assets.Job
	// Skipped lists cluster directories handled by other compilers.
	Skipped []string
}

// Scanner walks <input>/resources/<limit key>/<cluster>/<file>.
type Scanner struct {
	fs     afero.Fs
	opts   Options
	ignore common.IgnoreChecker
	logger zerolog.Logger
}

// New creates a Scanner.
func New(fs afero.Fs, opts Options, logger zerolog.Logger) *Scanner {
	return &Scanner{
		fs:     fs,
		opts:   opts,
		ignore: common.CompileIgnore(opts.Ignore),
		logger: logger.With().Str("component", "scan").Logger(),
	}
}

type itemKey struct {
	key   resource.Key
	limit string
}

// found locates a scanned file and its slot in Result.Items and Result.Jobs.
type found struct {
	src string
	idx int
}

// Scan walks inputs in order. When two inputs hold the same (type, name, limit key)
// the compiler decides: generic keeps the earlier input, overlap lets the later
// input replace it and append rejects the pair.
func (s *Scanner) Scan(ctx context.Context, inputs []string) (Result, error) {
	var res Result
	seen := make(map[itemKey]found)
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := s.scanInput(input, seen, &res); err != nil {
			return Result{}, err
		}
	}
	s.logger.Debug().
		Int("items", len(res.Items)).
		Int("skipped", len(res.Skipped)).
		Msg("Scan complete")
	return res, nil
}

func (s *Scanner) scanInput(input string, seen map[itemKey]found, res *Result) error {
	root := filepath.Join(input, internal.ResourcesDir)
	limitDirs, err := readDirs(s.fs, root)
	if err != nil {
		return err
	}

	// items of one input must be unique; shadowing applies across inputs only
	local := make(map[itemKey]found)
	for _, lkDir := range limitDirs {
		if lkDir == internal.RawFileDir || lkDir == internal.ResFileDir {
			continue
		}
		if common.Ignored(s.ignore, lkDir) {
			continue
		}
		lk, err := resource.ParseLimitKey(lkDir)
		if err != nil {
			return common.WithSource(common.NewValidationError(common.NoSeq, "limit key", "%v", err), filepath.Join(root, lkDir))
		}

		clusters, err := readDirs(s.fs, filepath.Join(root, lkDir))
		if err != nil {
			return err
		}
		for _, cluster := range clusters {
			dir := filepath.Join(root, lkDir, cluster)
			t, ok := resource.ParseType(cluster)
			if !ok || (t != resource.Element && t != resource.Media && t != resource.Profile) {
				return common.WithSource(common.NewValidationError(common.NoSeq, "cluster", "unknown resource directory '%s'", cluster), dir)
			}
			compiler := resource.SelectCompiler(t, s.opts.Mode)
			if compiler == resource.CompilerNone || compiler == resource.CompilerElement {
				s.logger.Debug().Str("dir", dir).Str("compiler", compiler.String()).Msg("Cluster left to another compiler")
				res.Skipped = append(res.Skipped, dir)
				continue
			}
			if err := s.scanCluster(input, lkDir, cluster, t, lk, compiler, seen, local, res); err != nil {
				return err
			}
		}
	}

	for k, src := range local {
		seen[k] = src
	}
	return nil
}

func (s *Scanner) scanCluster(input, lkDir, cluster string, t resource.Type, lk resource.LimitKey,
	compiler resource.CompilerKind, seen, local map[itemKey]found, res *Result) error {
	dir := filepath.Join(input, internal.ResourcesDir, lkDir, cluster)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return common.WrapError(err, "failed to read %s", dir)
	}
	for _, e := range entries {
		src := filepath.Join(dir, e.Name())
		rel := path.Join(lkDir, cluster, e.Name())
		if common.Ignored(s.ignore, rel) {
			continue
		}
		if e.IsDir() {
			s.logger.Warn().Str("dir", src).Msg("Nested directory in resource cluster ignored")
			continue
		}

		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !registry.ValidName(name) {
			return common.WithSource(common.NewValidationError(common.NoSeq, "name", "'%s' is not a valid resource name", name), src)
		}
		k := itemKey{key: resource.Key{Type: t, Name: name}, limit: lk.String()}
		if prev, dup := local[k]; dup {
			return &common.UniquenessError{Type: t.String(), Names: []string{prev.src, src}, Msg: "two files define " + k.key.String() + " for " + k.limit}
		}

		payload := path.Join(s.opts.ModuleName, internal.ResourcesDir, rel)
		item := resource.Item{
			Type:     t,
			Name:     name,
			LimitKey: lk,
			Data:     []byte(payload),
		}
		job := assets.Job{
			Src: src,
			Dst: filepath.Join(s.opts.Output, internal.ResourcesDir, lkDir, cluster, e.Name()),
		}

		if prev, dup := seen[k]; dup {
			switch compiler {
			case resource.CompilerOverlap:
				s.logger.Debug().Str("path", src).Str("replaced", prev.src).Msg("Resource overlays an earlier input")
				res.Items[prev.idx] = item
				res.Jobs[prev.idx] = job
				local[k] = found{src: src, idx: prev.idx}
			case resource.CompilerAppend:
				return &common.UniquenessError{Type: t.String(), Names: []string{prev.src, src}, Msg: "appended inputs both define " + k.key.String() + " for " + k.limit}
			default:
				s.logger.Debug().Str("path", src).Str("winner", prev.src).Msg("Resource shadowed by an earlier input")
			}
			continue
		}

		local[k] = found{src: src, idx: len(res.Items)}
		res.Items = append(res.Items, item)
		res.Jobs = append(res.Jobs, job)
	}
	return nil
}

// readDirs lists the sub directory names of dir, sorted. A missing dir has none.
func readDirs(fs afero.Fs, dir string) ([]string, error) {
	ok, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, common.WrapError(err, "failed to stat %s", dir)
	}
	if !ok {
		return nil, nil
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, common.WrapError(err, "failed to read %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
