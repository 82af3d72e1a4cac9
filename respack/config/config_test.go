package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultPoolSize, cfg.Pack.Threads)
	assert.Equal(suite.T(), internal.CachesDir, cfg.Pack.CacheDir)
	assert.Equal(suite.T(), internal.DefaultLogLevel, cfg.Log.Level)
	assert.False(suite.T(), cfg.Pack.ForceWrite)
	assert.Empty(suite.T(), cfg.Pack.Inputs)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
pack:
  inputs: ["./entry", "./lib"]
  output: "./out"
  packageName: "com.example.demo"
  moduleName: "entry"
  moduleNames: ["entry", "feature"]
  headers: ["./out/ResourceTable.h"]
  threads: 2
  forceWrite: true
  ignoredFiles: ["*.swp"]
log:
  level: debug
`
	configFile := filepath.Join(suite.tempDir, "respack.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(configContent), 0o644))

	cfg, err := LoadConfig(configFile)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), []string{"./entry", "./lib"}, cfg.Pack.Inputs)
	assert.Equal(suite.T(), "./out", cfg.Pack.Output)
	assert.Equal(suite.T(), "com.example.demo", cfg.Pack.PackageName)
	assert.Equal(suite.T(), []string{"entry", "feature"}, cfg.Pack.ModuleNames)
	assert.Equal(suite.T(), 2, cfg.Pack.Threads)
	assert.True(suite.T(), cfg.Pack.ForceWrite)
	assert.Equal(suite.T(), []string{"*.swp"}, cfg.Pack.IgnoredFiles)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)
	assert.Equal(suite.T(), cfg.Pack.Output, AppConfig.Pack.Output)
	assert.NoError(suite.T(), cfg.Pack.Validate())
}

func (suite *ConfigTestSuite) TestLoadConfigSearchesWorkingDir() {
	require.NoError(suite.T(), os.WriteFile("respack.yaml", []byte("pack:\n  output: found\n"), 0o644))
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "found", cfg.Pack.Output)
}

func (suite *ConfigTestSuite) TestEnvironmentOverride() {
	suite.T().Setenv("RESPACK_PACK_OUTPUT", "/from/env")
	suite.T().Setenv("RESPACK_PACK_THREADS", "3")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "/from/env", cfg.Pack.Output)
	assert.Equal(suite.T(), 3, cfg.Pack.Threads)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/respack.yaml")
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	configFile := filepath.Join(suite.tempDir, "malformed.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte("pack:\n  inputs: [unclosed\n"), 0o644))

	cfg, err := LoadConfig(configFile)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func validPack() PackConfig {
	return PackConfig{
		Inputs:      []string{"entry"},
		Output:      "out",
		PackageName: "com.example.demo",
		Threads:     4,
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*PackConfig){
		"no inputs":        func(c *PackConfig) { c.Inputs = nil },
		"no output":        func(c *PackConfig) { c.Output = "" },
		"no package":       func(c *PackConfig) { c.PackageName = "" },
		"negative threads": func(c *PackConfig) { c.Threads = -1 },
		"start id and declarations": func(c *PackConfig) {
			c.StartID = "0x01000000"
			c.IDDefined = "ids.json"
		},
		"bad start id":             func(c *PackConfig) { c.StartID = "zz" },
		"unknown module":           func(c *PackConfig) { c.ModuleName = "x"; c.ModuleNames = []string{"entry"} },
		"overlap and append":       func(c *PackConfig) { c.Overlap = true; c.Append = true },
		"depend ids without entry": func(c *PackConfig) { c.DependIDs = []string{"0x01000000"} },
		"bad depend id":            func(c *PackConfig) { c.DependEntry = "/dep"; c.DependIDs = []string{"label"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validPack()
			mutate(&c)
			err := c.Validate()
			assert.True(t, errors.Is(err, common.ErrConfiguration), err)
		})
	}
	assert.NoError(t, validPack().Validate())
}

func TestStartIDValue(t *testing.T) {
	c := validPack()
	id, err := c.StartIDValue()
	require.NoError(t, err)
	assert.Zero(t, id)

	c.StartID = "0x02000000"
	id, err = c.StartIDValue()
	require.NoError(t, err)
	assert.Equal(t, int64(0x02000000), id)
}

func TestDependIDValuesAndMode(t *testing.T) {
	c := validPack()
	c.DependEntry = "/dep"
	c.DependIDs = []string{"0x01000002", "0X01000000"}
	ids, err := c.DependIDValues()
	require.NoError(t, err)
	assert.Equal(t, []int64{0x01000002, 0x01000000}, ids)
	assert.NoError(t, c.Validate())

	assert.Equal(t, resource.PackNormal, c.Mode())
	c.Overlap = true
	assert.Equal(t, resource.PackOverlap, c.Mode())
	c.Overlap, c.Append = false, true
	assert.Equal(t, resource.PackAppend, c.Mode())
}

func TestCachePath(t *testing.T) {
	c := validPack()
	c.CacheDir = ""
	assert.Equal(t, filepath.Join("out", ".caches", "id_defined.json"), c.CachePath())

	c.CacheDir = "/tmp/cache"
	assert.Equal(t, filepath.Join("/tmp/cache", "id_defined.json"), c.CachePath())
}
