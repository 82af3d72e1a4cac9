package assets

import (
	"context"
	"testing"

	"github.com/ZanzyTHEbar/respack/respack/pool"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AssetsTestSuite struct {
	suite.Suite
	fs   afero.Fs
	pool *pool.Pool
}

func (s *AssetsTestSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()
	s.pool = pool.New(zerolog.Nop())
	s.Require().NoError(s.pool.Start(4))

	s.write("/lib/resources/rawfile/data/config.json", "lib config")
	s.write("/lib/resources/rawfile/shared.txt", "from lib")
	s.write("/app/resources/rawfile/shared.txt", "from app")
	s.write("/app/resources/rawfile/.DS_Store", "junk")
	s.write("/app/resources/rawfile/tmp/scratch.bin", "junk")
	s.write("/app/resources/resfile/model.bin", "weights")
	s.write("/app/resources/base/media/icon.png", "not copied here")
}

func (s *AssetsTestSuite) TearDownTest() {
	s.pool.Stop()
}

func (s *AssetsTestSuite) write(path, content string) {
	s.Require().NoError(afero.WriteFile(s.fs, path, []byte(content), 0o644))
}

func (s *AssetsTestSuite) read(path string) string {
	data, err := afero.ReadFile(s.fs, path)
	s.Require().NoError(err)
	return string(data)
}

func (s *AssetsTestSuite) newPacker() *Packer {
	return New(s.fs, s.pool, Options{Output: "/out", Ignore: []string{".DS_Store", "tmp/"}}, zerolog.Nop())
}

func (s *AssetsTestSuite) TestCopyBinaryDirs() {
	p := s.newPacker()
	err := p.CopyBinaryDirs(context.Background(), []string{"/app", "/lib"}).Wait(context.Background())
	s.Require().NoError(err)

	s.Equal("from app", s.read("/out/resources/rawfile/shared.txt"), "earlier input wins")
	s.Equal("lib config", s.read("/out/resources/rawfile/data/config.json"))
	s.Equal("weights", s.read("/out/resources/resfile/model.bin"))

	for _, path := range []string{
		"/out/resources/rawfile/.DS_Store",
		"/out/resources/rawfile/tmp/scratch.bin",
		"/out/resources/base/media/icon.png",
	} {
		exists, err := afero.Exists(s.fs, path)
		s.Require().NoError(err)
		s.False(exists, path)
	}
	s.Equal(Stats{Copied: 3}, p.Stats())
}

func (s *AssetsTestSuite) TestUnchangedFilesAreSkipped() {
	inputs := []string{"/app", "/lib"}
	s.Require().NoError(s.newPacker().CopyBinaryDirs(context.Background(), inputs).Wait(context.Background()))

	s.write("/lib/resources/rawfile/data/config.json", "lib config v2")
	p := s.newPacker()
	s.Require().NoError(p.CopyBinaryDirs(context.Background(), inputs).Wait(context.Background()))

	s.Equal(Stats{Copied: 1, Skipped: 2}, p.Stats())
	s.Equal("lib config v2", s.read("/out/resources/rawfile/data/config.json"))
}

func (s *AssetsTestSuite) TestMissingSourceFails() {
	p := s.newPacker()
	err := p.CopyFiles(context.Background(), []Job{{Src: "/nope", Dst: "/out/x"}}).Wait(context.Background())
	s.Error(err)
	s.Equal(int64(1), p.Stats().Failed)
}

func (s *AssetsTestSuite) TestStopCancelsPendingCopies() {
	p := s.newPacker()
	p.Stop()
	err := p.CopyBinaryDirs(context.Background(), []string{"/app"}).Wait(context.Background())
	s.ErrorIs(err, context.Canceled)

	exists, _ := afero.Exists(s.fs, "/out/resources/resfile/model.bin")
	s.False(exists)
}

func TestAssetsTestSuite(t *testing.T) {
	suite.Run(t, new(AssetsTestSuite))
}

func TestInlineCopyWithoutPool(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/m/resources/rawfile/a.txt", []byte("a"), 0o644))

	p := New(fs, pool.New(zerolog.Nop()), Options{Output: "/out"}, zerolog.Nop())
	f := p.CopyBinaryDirs(context.Background(), []string{"/m"})
	select {
	case <-f.Done():
	default:
		t.Fatal("copies run inline when the pool is not started")
	}
	require.NoError(t, f.Wait(context.Background()))

	data, err := afero.ReadFile(fs, "/out/resources/rawfile/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}
