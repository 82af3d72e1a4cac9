package idworker

import (
	"fmt"

	"github.com/ZanzyTHEbar/respack/respack/registry"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	"github.com/armon/go-radix"
)

// assignedIndex keeps the ids of this build in a radix tree keyed by a fixed-width
// type code prefix followed by the name, so an in-order walk yields entries grouped
// by type and sorted by name.
type assignedIndex struct {
	tree *radix.Tree
}

type assignedEntry struct {
	key resource.Key
	id  int64
}

func newAssignedIndex() *assignedIndex {
	return &assignedIndex{tree: radix.New()}
}

// type codes are small and non-negative, so three digits keep numeric order
func indexKey(key resource.Key) string {
	return fmt.Sprintf("%03d/%s", int32(key.Type), key.Name)
}

func (ix *assignedIndex) get(key resource.Key) (int64, bool) {
	v, ok := ix.tree.Get(indexKey(key))
	if !ok {
		return -1, false
	}
	return v.(assignedEntry).id, true
}

func (ix *assignedIndex) put(key resource.Key, id int64) {
	ix.tree.Insert(indexKey(key), assignedEntry{key: key, id: id})
}

func (ix *assignedIndex) len() int { return ix.tree.Len() }

func (ix *assignedIndex) list() []registry.ResourceID {
	out := make([]registry.ResourceID, 0, ix.tree.Len())
	ix.tree.Walk(func(_ string, v interface{}) bool {
		e := v.(assignedEntry)
		out = append(out, registry.ResourceID{
			ID:   e.id,
			Seq:  int64(len(out)),
			Type: e.key.Type.String(),
			Name: e.key.Name,
		})
		return false
	})
	return out
}
