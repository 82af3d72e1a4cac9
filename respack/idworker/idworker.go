// Package idworker assigns stable numeric ids to (type, name) pairs within the
// application or system id space.
//
// Application ids are issued from a block [startId, ceiling] where the block size
// is the lowest set bit of startId. Ids recovered from a previous build are fed in
// through PushCache before any fresh allocation so that unchanged names keep their
// ids and the gaps left by removed names are reused before the frontier advances.
// System ids are never minted; they come from declaration documents only.
package idworker

import (
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/registry"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
)

// Namespace is one of the two disjoint id spaces.
type Namespace int

const (
	App Namespace = iota
	System
)

func (ns Namespace) String() string {
	if ns == System {
		return "system"
	}
	return "app"
}

// DefaultAppStartID is used when no start id is configured.
const DefaultAppStartID int64 = 0x01000000

// ErrNotDeclared is returned when a system id is requested for an undeclared name.
var ErrNotDeclared = errors.New("system id is not declared")

// Allocator owns the id state of one build. It is not safe for concurrent use.
type Allocator struct {
	reg *registry.Registry
	ns  Namespace

	cursor  int64
	ceiling int64

	assigned *assignedIndex
	cache    map[resource.Key]int64
	recycle  []int64
	claimed  *roaring.Bitmap // application ids pinned by declarations

	sealed bool // set by the first fresh allocation
	logger zerolog.Logger
}

// New creates an allocator over the predefined ids of reg.
func New(reg *registry.Registry, logger zerolog.Logger) *Allocator {
	return &Allocator{
		reg:      reg,
		assigned: newAssignedIndex(),
		cache:    make(map[resource.Key]int64),
		claimed:  roaring.New(),
		logger:   logger.With().Str("component", "idworker").Logger(),
	}
}

// Ceiling returns the highest id of the block that starts at startID.
func Ceiling(startID int64) int64 {
	if startID <= 0 {
		return startID
	}
	return startID + (startID & -startID) - 1
}

// Init selects the namespace and, for applications, the id block.
func (a *Allocator) Init(ns Namespace, startID int64) error {
	a.ns = ns
	if ns != App {
		a.logger.Debug().Str("namespace", ns.String()).Msg("Allocator initialised")
		return nil
	}
	if startID <= 0 {
		startID = DefaultAppStartID
	}
	if startID > int64(^uint32(0)) {
		return common.NewConfigurationError("start id 0x%x does not fit in 32 bits", startID)
	}
	a.cursor = startID
	a.ceiling = Ceiling(startID)

	a.claimed.Clear()
	for _, id := range a.reg.AppIDs() {
		a.claimed.Add(uint32(id.ID))
	}

	a.logger.Debug().
		Str("namespace", ns.String()).
		Str("start", hex(startID)).
		Str("ceiling", hex(a.ceiling)).
		Uint64("predefined", a.claimed.GetCardinality()).
		Msg("Allocator initialised")
	return nil
}

// Namespace returns the namespace chosen by Init.
func (a *Allocator) Namespace() Namespace { return a.ns }

// Cursor returns the next frontier id.
func (a *Allocator) Cursor() int64 { return a.cursor }

// Ceiling returns the highest id this allocator may issue.
func (a *Allocator) Ceiling() int64 { return a.ceiling }

// Recycled returns a copy of the pending recycle queue, oldest first.
func (a *Allocator) Recycled() []int64 {
	return append([]int64(nil), a.recycle...)
}

// GenerateID returns the id for (t, name), allocating one on first request.
func (a *Allocator) GenerateID(t resource.Type, name string) (int64, error) {
	key := resource.Key{Type: t, Name: name}
	if a.ns == App {
		return a.generateAppID(key)
	}
	return a.generateSysID(key)
}

func (a *Allocator) generateAppID(key resource.Key) (int64, error) {
	if id, ok := a.assigned.get(key); ok {
		return id, nil
	}
	if decl, ok := a.reg.App(key); ok {
		a.assigned.put(key, decl.ID)
		return decl.ID, nil
	}
	if id, ok := a.cache[key]; ok {
		a.assigned.put(key, id)
		return id, nil
	}

	a.sealed = true
	id, err := a.fresh()
	if err != nil {
		return -1, err
	}
	a.assigned.put(key, id)
	a.logger.Trace().Str("key", key.String()).Str("id", hex(id)).Msg("Allocated id")
	return id, nil
}

// fresh prefers recycled ids, then advances the frontier past declared ids.
func (a *Allocator) fresh() (int64, error) {
	if len(a.recycle) > 0 {
		id := a.recycle[0]
		a.recycle = a.recycle[1:]
		return id, nil
	}
	for a.cursor <= a.ceiling {
		id := a.cursor
		a.cursor++
		if !a.claimed.Contains(uint32(id)) {
			return id, nil
		}
	}
	return -1, &common.CapacityError{ID: a.cursor, Ceiling: a.ceiling}
}

func (a *Allocator) generateSysID(key resource.Key) (int64, error) {
	if id, ok := a.assigned.get(key); ok {
		return id, nil
	}
	if decl, ok := a.reg.System(key); ok {
		a.assigned.put(key, decl.ID)
		return decl.ID, nil
	}
	return -1, common.WrapError(ErrNotDeclared, "%s", key)
}

// GetID returns the id assigned to (t, name) during this build.
func (a *Allocator) GetID(t resource.Type, name string) (int64, bool) {
	return a.assigned.get(resource.Key{Type: t, Name: name})
}

// GetSystemID returns the declared system id for (t, name).
func (a *Allocator) GetSystemID(t resource.Type, name string) (int64, bool) {
	decl, ok := a.reg.System(resource.Key{Type: t, Name: name})
	if !ok {
		return -1, false
	}
	return decl.ID, true
}

// PushCache reconciles one id recovered from a previous build. Cached ids must be
// pushed in ascending order and before the first fresh allocation.
func (a *Allocator) PushCache(t resource.Type, name string, id int64) error {
	key := resource.Key{Type: t, Name: name}
	if a.ns != App {
		return common.NewConfigurationError("id cache is only kept for the application namespace")
	}
	if a.sealed {
		return common.NewConfigurationError("cache entry %s pushed after allocation started", key)
	}
	if prev, ok := a.cache[key]; ok {
		return &common.UniquenessError{ID: id, Type: t.String(), Names: []string{name}, Msg: fmt.Sprintf("cache already holds this name with id %s", hex(prev))}
	}
	if id > a.ceiling {
		return &common.CapacityError{ID: id, Ceiling: a.ceiling}
	}
	if id < a.cursor {
		return &common.UniquenessError{ID: id, Type: t.String(), Names: []string{name}, Msg: fmt.Sprintf("cached id is below the cursor %s", hex(a.cursor))}
	}
	if a.claimed.Contains(uint32(id)) {
		return &common.UniquenessError{ID: id, Type: t.String(), Names: []string{name}, Msg: "cached id is now declared for another name"}
	}

	for i := a.cursor; i < id; i++ {
		if !a.claimed.Contains(uint32(i)) {
			a.recycle = append(a.recycle, i)
		}
	}
	a.cursor = id + 1
	a.cache[key] = id
	return nil
}

// AllAssigned returns every assigned id grouped by type code, names ascending.
func (a *Allocator) AllAssigned() []registry.ResourceID {
	return a.assigned.list()
}

func hex(id int64) string {
	return fmt.Sprintf("0x%08x", id)
}

// Len returns the number of ids assigned so far.
func (a *Allocator) Len() int { return a.assigned.len() }
