// Package header renders the assigned id list as source headers for application code.
package header

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/registry"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrUnsupportedFormat is returned by Render for an unknown header extension.
var ErrUnsupportedFormat = errors.New("unsupported header format")

type renderer func(b *strings.Builder, ids []registry.ResourceID)

var renderers = map[string]renderer{
	".txt": renderText,
	".js":  renderJS,
	".h":   renderC,
}

// Render formats ids for the header at path, chosen by its extension. ids are
// expected grouped by type, as returned by the allocator.
func Render(path string, ids []registry.ResourceID) ([]byte, error) {
	ext := filepath.Ext(path)
	r, ok := renderers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, ext)
	}
	var b strings.Builder
	r(&b, ids)
	return []byte(b.String()), nil
}

// Generate writes the header at path. Unsupported formats are logged and skipped.
func Generate(fs afero.Fs, path string, ids []registry.ResourceID, logger zerolog.Logger) error {
	data, err := Render(path, ids)
	if errors.Is(err, ErrUnsupportedFormat) {
		logger.Warn().Str("path", path).Msg("Skipping header with unsupported format")
		return nil
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return common.WrapError(err, "failed to create %s", dir)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return common.WrapError(err, "failed to write header %s", path)
	}
	logger.Debug().Str("path", path).Int("ids", len(ids)).Msg("Header written")
	return nil
}

func renderText(b *strings.Builder, ids []registry.ResourceID) {
	for i, id := range ids {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "%s %s 0x%08x", id.Type, id.Name, id.ID)
	}
}

func renderJS(b *strings.Builder, ids []registry.ResourceID) {
	b.WriteString("export default {\n")
	current := ""
	for _, id := range ids {
		if id.Type != current {
			if current != "" {
				b.WriteString("\n    },\n")
			}
			fmt.Fprintf(b, "    %s : {\n", id.Type)
			current = id.Type
		} else {
			b.WriteString(",\n")
		}
		fmt.Fprintf(b, "        %s : %d", id.Name, id.ID)
	}
	if current != "" {
		b.WriteString("\n    }\n")
	}
	b.WriteString("}\n")
}

func renderC(b *strings.Builder, ids []registry.ResourceID) {
	b.WriteString("#ifndef RESOURCE_TABLE_H\n#define RESOURCE_TABLE_H\n\n#include<stdint.h>\n\nnamespace OHOS {\n")
	for _, id := range ids {
		name := strings.ToUpper(id.Type + "_" + id.Name)
		fmt.Fprintf(b, "const int32_t %s = 0x%08x;\n", name, id.ID)
	}
	b.WriteString("}\n#endif")
}
