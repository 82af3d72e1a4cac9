package idworker

import (
	"sort"

	"github.com/ZanzyTHEbar/respack/respack/common"
)

const (
	moduleBlock    int64 = 0x01000000
	reservedBlock  int64 = 0x07000000
	systemBoundary       = reservedBlock
)

// StartIDForModule derives a module's start id from its position in the sorted list
// of all modules of the application. Each module owns one 0x01000000 block; the
// block at 0x07000000 belongs to the system and is skipped.
func StartIDForModule(module string, modules []string) (int64, error) {
	sorted := append([]string(nil), modules...)
	sort.Strings(sorted)
	idx := sort.SearchStrings(sorted, module)
	if idx == len(sorted) || sorted[idx] != module {
		return 0, common.NewConfigurationError("module name '%s' is not in %v", module, sorted)
	}
	start := int64(idx+1) * moduleBlock
	if start >= systemBoundary {
		start += moduleBlock
	}
	return start, nil
}
