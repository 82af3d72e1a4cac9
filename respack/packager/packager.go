// Package packager runs one resource build: it loads id declarations, reconciles the
// previous build's id cache, assigns ids to every scanned resource, copies binary
// assets and finally commits the resource index, the id cache and the headers.
package packager

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/assets"
	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/config"
	"github.com/ZanzyTHEbar/respack/respack/header"
	"github.com/ZanzyTHEbar/respack/respack/idworker"
	"github.com/ZanzyTHEbar/respack/respack/pool"
	"github.com/ZanzyTHEbar/respack/respack/registry"
	"github.com/ZanzyTHEbar/respack/respack/resource"
	"github.com/ZanzyTHEbar/respack/respack/restable"
	"github.com/ZanzyTHEbar/respack/respack/scan"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultLockTimeout bounds how long a build waits for another build on the same output.
const DefaultLockTimeout = 30 * time.Second

// Source discovers the resource items of a build.
type Source interface {
	Scan(ctx context.Context, inputs []string) (scan.Result, error)
}

// Result summarizes a finished build.
type Result struct {
	BuildID   string
	Namespace idworker.Namespace
	StartID   int64
	// IDs lists every assigned id grouped by type.
	IDs       []registry.ResourceID
	Table     restable.Table
	IndexPath string
	Headers   []string
	Assets    assets.Stats
	Skipped   []string
}

// Packager builds one module according to its configuration.
type Packager struct {
	cfg    config.PackConfig
	fs     afero.Fs
	logger zerolog.Logger
	assert *assert.AssertHandler

	// LockFactory overrides the output lock; nil picks one for the filesystem.
	LockFactory LockFactory
	LockTimeout time.Duration
}

// New validates cfg and creates a Packager.
func New(cfg config.PackConfig, fs afero.Fs, logger zerolog.Logger) (*Packager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Packager{
		cfg:         cfg,
		fs:          fs,
		logger:      logger.With().Str("component", "packager").Logger(),
		assert:      assert.NewAssertHandler(),
		LockTimeout: DefaultLockTimeout,
	}, nil
}

// DefaultSource scans the configured inputs for media and profile files.
func (p *Packager) DefaultSource(logger zerolog.Logger) Source {
	return scan.New(p.fs, scan.Options{
		ModuleName: p.cfg.ModuleName,
		Output:     p.cfg.Output,
		Mode:       p.cfg.Mode(),
		Ignore:     p.cfg.IgnoredFiles,
	}, logger)
}

// Namespace returns the id space the configured package allocates from.
func (p *Packager) Namespace() idworker.Namespace {
	if p.cfg.PackageName == internal.SystemPackageName {
		return idworker.System
	}
	return idworker.App
}

// Pack runs the build. A nil source uses DefaultSource. Nothing is committed to the
// output unless every step succeeds.
func (p *Packager) Pack(ctx context.Context, source Source) (*Result, error) {
	buildID := uuid.NewString()
	log := p.logger.With().Str("build", buildID).Logger()
	start := time.Now()

	if source == nil {
		source = p.DefaultSource(log)
	}

	unlock, err := p.lockOutput(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := p.prepareOutput(); err != nil {
		return nil, err
	}

	ns := p.Namespace()
	override, err := p.cfg.StartIDValue()
	if err != nil {
		return nil, err
	}
	if ns == idworker.System {
		override = 0
	}
	startID, err := p.startID(ns, override)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("package", p.cfg.PackageName).
		Str("namespace", ns.String()).
		Strs("inputs", p.cfg.Inputs).
		Msg("Build started")

	reg := registry.New(log)
	if err := reg.LoadModule(p.fs, registry.LoadOptions{
		Inputs:           p.cfg.Inputs,
		Combine:          p.cfg.Combine,
		StartID:          override,
		System:           ns == idworker.System,
		IDDefinedInput:   p.cfg.IDDefined,
		SysIDDefinedPath: p.cfg.SysIDDefined,
	}); err != nil {
		return nil, err
	}

	scanned, err := source.Scan(ctx, p.cfg.Inputs)
	if err != nil {
		return nil, err
	}
	if err := p.importDependency(&scanned, log); err != nil {
		return nil, err
	}

	alloc := idworker.New(reg, log)
	if err := alloc.Init(ns, startID); err != nil {
		return nil, err
	}
	if ns == idworker.App {
		if err := p.reconcileCache(reg, alloc, scanned.Items, log); err != nil {
			return nil, err
		}
	}

	workers := pool.New(log)
	if err := workers.Start(p.cfg.Threads); err != nil {
		return nil, err
	}
	defer workers.Stop()
	packer := assets.New(p.fs, workers, assets.Options{Output: p.cfg.Output, Ignore: p.cfg.IgnoredFiles}, log)
	defer packer.Stop()
	copies := pool.All(
		packer.CopyBinaryDirs(ctx, p.cfg.Inputs),
		packer.CopyFiles(ctx, scanned.Jobs),
	)

	table := make(restable.Table)
	for _, it := range scanned.Items {
		id, err := alloc.GenerateID(it.Type, it.Name)
		if err != nil {
			return nil, common.WrapError(err, "failed to assign an id to %s", it.Key())
		}
		p.assert.Assert(ctx, id >= 0, "allocated ids are never negative")
		table[id] = append(table[id], it)
	}

	data, err := restable.Encode(table)
	if err != nil {
		return nil, err
	}

	if err := copies.Wait(ctx); err != nil {
		return nil, common.WrapError(err, "asset copy failed")
	}

	ids := alloc.AllAssigned()
	p.assert.Assert(ctx, len(ids) == alloc.Len(), "assigned index and id list disagree")

	indexPath := filepath.Join(p.cfg.Output, internal.ResourceIndexFile)
	if err := restable.WriteAtomic(p.fs, indexPath, data); err != nil {
		return nil, err
	}
	if ns == idworker.App {
		if err := p.writeCache(ids); err != nil {
			return nil, err
		}
	}
	headers := p.headerPaths()
	for _, h := range headers {
		if err := header.Generate(p.fs, h, ids, log); err != nil {
			return nil, err
		}
	}

	res := &Result{
		BuildID:   buildID,
		Namespace: ns,
		StartID:   startID,
		IDs:       ids,
		Table:     table,
		IndexPath: indexPath,
		Headers:   headers,
		Assets:    packer.Stats(),
		Skipped:   scanned.Skipped,
	}
	log.Info().
		Int("ids", len(ids)).
		Int("items", len(scanned.Items)).
		Int64("assets_copied", res.Assets.Copied).
		Int64("assets_skipped", res.Assets.Skipped).
		Dur("duration", time.Since(start)).
		Msg("Build finished")
	return res, nil
}

func (p *Packager) lockOutput(ctx context.Context) (func(), error) {
	if err := p.fs.MkdirAll(p.cfg.Output, 0o755); err != nil {
		return nil, common.WrapError(err, "failed to create output %s", p.cfg.Output)
	}
	factory := p.LockFactory
	if factory == nil {
		factory = defaultLockFactory(p.fs)
	}
	lock := factory(filepath.Join(p.cfg.Output, internal.LockFile))
	if err := acquire(ctx, lock, p.LockTimeout); err != nil {
		return nil, err
	}
	return func() { _ = lock.Unlock() }, nil
}

// prepareOutput refuses to overwrite a previous build unless forced.
func (p *Packager) prepareOutput() error {
	for _, name := range []string{internal.ResourcesDir, internal.ResourceIndexFile} {
		path := filepath.Join(p.cfg.Output, name)
		exists, err := afero.Exists(p.fs, path)
		if err != nil {
			return common.WrapError(err, "failed to stat %s", path)
		}
		if exists && !p.cfg.ForceWrite {
			return common.NewConfigurationError("'%s' already exists, force write is required to replace it", path)
		}
	}
	return nil
}

// startID picks the first id of the build: the configured override, else the
// block derived from the module list. Only the override conflicts with declarations.
func (p *Packager) startID(ns idworker.Namespace, override int64) (int64, error) {
	if ns == idworker.System {
		return 0, nil
	}
	if override > 0 {
		return override, nil
	}
	if len(p.cfg.ModuleNames) > 0 && p.cfg.ModuleName != "" {
		return idworker.StartIDForModule(p.cfg.ModuleName, p.cfg.ModuleNames)
	}
	return 0, nil
}

// reconcileCache feeds the previous build's ids of names still present back to the
// allocator, ascending, so ids of removed names get recycled. Entries for declared
// names, declared ids or ids outside the current block are dropped; those names are
// allocated afresh.
func (p *Packager) reconcileCache(reg *registry.Registry, alloc *idworker.Allocator, items []resource.Item, log zerolog.Logger) error {
	path := p.cfg.CachePath()
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return common.WrapError(err, "failed to read id cache %s", path)
	}
	records, err := registry.ParseRecords(data)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Ignoring unreadable id cache")
		return nil
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	present := make(map[resource.Key]struct{}, len(items))
	for _, it := range items {
		present[it.Key()] = struct{}{}
	}

	pushed := 0
	for _, r := range records {
		key := r.Key()
		if _, ok := present[key]; !ok {
			continue
		}
		if _, declared := reg.App(key); declared {
			continue
		}
		if r.ID < alloc.Cursor() || r.ID > alloc.Ceiling() || reg.IsAppDefined(r.ID) {
			log.Warn().Str("key", key.String()).Int64("id", r.ID).Msg("Dropping stale id cache entry")
			continue
		}
		if err := alloc.PushCache(key.Type, key.Name, r.ID); err != nil {
			return common.WithSource(err, path)
		}
		pushed++
	}
	log.Debug().Int("entries", pushed).Int("recycled", len(alloc.Recycled())).Msg("Id cache reconciled")
	return nil
}

func (p *Packager) writeCache(ids []registry.ResourceID) error {
	path := p.cfg.CachePath()
	if len(ids) == 0 {
		if err := p.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return common.WrapError(err, "failed to remove id cache %s", path)
		}
		return nil
	}
	return restable.WriteIDDefined(p.fs, path, ids)
}

func (p *Packager) headerPaths() []string {
	paths := append([]string(nil), p.cfg.Headers...)
	return append(paths, filepath.Join(p.cfg.Output, internal.ResourceTableHeader))
}
