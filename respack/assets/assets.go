// Package assets copies opaque binary resources (raw files and resource files) into
// the build output on the worker pool.
package assets

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/pool"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// Options configures a Packer.
type Options struct {
	// Output is the build output directory.
	Output string
	// Ignore holds gitignore style patterns matched against paths relative to the
	// copied directory.
	Ignore []string
}

// Job copies one file.
type Job struct {
	Src string
	Dst string
}

// Stats counts finished copy jobs.
type Stats struct {
	Copied  int64
	Skipped int64
	Failed  int64
}

// Packer schedules asset copies.
type Packer struct {
	fs     afero.Fs
	pool   *pool.Pool
	opts   Options
	ignore common.IgnoreChecker
	logger zerolog.Logger

	stopCtx context.Context
	stop    context.CancelFunc

	copied  atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// New creates a Packer that submits its copies to p.
func New(fs afero.Fs, p *pool.Pool, opts Options, logger zerolog.Logger) *Packer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Packer{
		fs:      fs,
		pool:    p,
		opts:    opts,
		ignore:  common.CompileIgnore(opts.Ignore),
		logger:  logger.With().Str("component", "assets").Logger(),
		stopCtx: ctx,
		stop:    cancel,
	}
}

// CopyBinaryDirs copies the rawfile and resfile trees of every input into the
// output. When two inputs provide the same relative path the earlier input wins.
func (p *Packer) CopyBinaryDirs(ctx context.Context, inputs []string) *pool.Future {
	jobs, err := p.collect(inputs)
	if err != nil {
		return pool.Completed(err)
	}
	p.logger.Debug().Int("files", len(jobs)).Msg("Scheduling binary asset copies")
	return p.CopyFiles(ctx, jobs)
}

func (p *Packer) collect(inputs []string) ([]Job, error) {
	seen := make(map[string]struct{})
	var jobs []Job
	for _, input := range inputs {
		resources := filepath.Join(input, internal.ResourcesDir)
		for _, dir := range []string{internal.RawFileDir, internal.ResFileDir} {
			root := filepath.Join(resources, dir)
			ok, err := afero.DirExists(p.fs, root)
			if err != nil {
				return nil, common.WrapError(err, "failed to stat %s", root)
			}
			if !ok {
				continue
			}
			err = afero.Walk(p.fs, root, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return err
				}
				if rel != "." && common.Ignored(p.ignore, rel) {
					if info.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if info.IsDir() {
					return nil
				}
				out, err := filepath.Rel(resources, path)
				if err != nil {
					return err
				}
				if _, dup := seen[out]; dup {
					p.logger.Debug().Str("path", path).Msg("Asset shadowed by an earlier input")
					return nil
				}
				seen[out] = struct{}{}
				jobs = append(jobs, Job{
					Src: path,
					Dst: filepath.Join(p.opts.Output, internal.ResourcesDir, out),
				})
				return nil
			})
			if err != nil {
				return nil, common.WrapError(err, "failed to walk %s", root)
			}
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Dst < jobs[j].Dst })
	return jobs, nil
}

// CopyFiles submits one task per job and returns a future over all of them.
func (p *Packer) CopyFiles(ctx context.Context, jobs []Job) *pool.Future {
	ctx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(p.stopCtx, cancel)

	futures := make([]*pool.Future, 0, len(jobs))
	for _, job := range jobs {
		futures = append(futures, p.pool.Submit(ctx, func(ctx context.Context) error {
			return p.copyFile(ctx, job)
		}))
	}
	all := pool.All(futures...)
	go func() {
		<-all.Done()
		release()
		cancel()
	}()
	return all
}

// Stop cancels every copy that has not started yet.
func (p *Packer) Stop() { p.stop() }

// Stats returns the counters accumulated so far.
func (p *Packer) Stats() Stats {
	return Stats{
		Copied:  p.copied.Load(),
		Skipped: p.skipped.Load(),
		Failed:  p.failed.Load(),
	}
}

func (p *Packer) copyFile(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		p.failed.Add(1)
		return err
	}
	data, err := afero.ReadFile(p.fs, job.Src)
	if err != nil {
		p.failed.Add(1)
		return common.WrapError(err, "failed to read %s", job.Src)
	}

	if unchanged(p.fs, job.Dst, data) {
		p.skipped.Add(1)
		return nil
	}

	if err := p.fs.MkdirAll(filepath.Dir(job.Dst), 0o755); err != nil {
		p.failed.Add(1)
		return common.WrapError(err, "failed to create %s", filepath.Dir(job.Dst))
	}
	if err := afero.WriteFile(p.fs, job.Dst, data, 0o644); err != nil {
		p.failed.Add(1)
		return common.WrapError(err, "failed to write %s", job.Dst)
	}
	p.copied.Add(1)
	p.logger.Trace().Str("src", job.Src).Str("dst", job.Dst).Msg("Copied asset")
	return nil
}

// unchanged reports whether dst already holds data.
func unchanged(fs afero.Fs, dst string, data []byte) bool {
	info, err := fs.Stat(dst)
	if err != nil || info.IsDir() || info.Size() != int64(len(data)) {
		return false
	}
	existing, err := afero.ReadFile(fs, dst)
	if err != nil {
		return false
	}
	a, b := blake3.Sum256(existing), blake3.Sum256(data)
	return bytes.Equal(a[:], b[:])
}
