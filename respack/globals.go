package internal

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var (
	DefaultAppName = "respack"

	// DefaultConfigName is the config file base name searched for when no path is given.
	DefaultConfigName = "respack"
	// EnvPrefix prefixes environment overrides, e.g. RESPACK_PACK_OUTPUT.
	EnvPrefix = "RESPACK"

	// Version is written into the header of every resource index.
	Version = "Respack 1.0.0.001"

	// Well-known file and directory names inside a module and the build output.
	ResourcesDir        = "resources"
	BaseDir             = "base"
	ElementDir          = "element"
	RawFileDir          = "rawfile"
	ResFileDir          = "resfile"
	CachesDir           = ".caches"
	IDDefinedFile       = "id_defined.json"
	ResourceIndexFile   = "resources.index"
	ResourceTableHeader = "ResourceTable.txt"
	LockFile            = ".respack.lock"

	// SystemPackageName marks the platform package whose ids live in the system namespace.
	SystemPackageName = "ohos.global.systemres"

	DefaultPoolSize = 8
	DefaultLogLevel = "info"
)

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return NewLogger(os.Stderr, DefaultLogLevel)
}

// NewLogger builds a timestamped logger writing to w at the named level.
// Unknown level names fall back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
