// Package registry parses id declaration documents that pin resource names to
// fixed ids, keeping the application and system namespaces apart while enforcing
// global id uniqueness across both.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	"github.com/rs/zerolog"
)

// Id ranges and masks that constrain declared ids.
const (
	AppIDLowMin  int64 = 0x01000000
	AppIDLowMax  int64 = 0x06FFFFFF // exclusive
	AppIDHighMin int64 = 0x08000000
	AppIDHighMax int64 = 0x41FFFFFF // exclusive

	// SysNameCheckMask selects system ids whose names must be valid identifiers.
	SysNameCheckMask int64 = 0x07800000
)

var errTrailingData = errors.New("trailing data after JSON value")

var (
	hexIDPattern     = regexp.MustCompile(`^0[xX][0-9a-fA-F]{8}$`)
	validNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// Document field names.
const (
	fieldRecord  = "record"
	fieldStartID = "startId"
	fieldType    = "type"
	fieldName    = "name"
	fieldID      = "id"
	fieldOrder   = "order"
)

// ResourceID is one declared (type, name) -> id binding.
type ResourceID struct {
	ID   int64
	Seq  int64
	Type string
	Name string
}

// Key returns the namespace key of the declaration.
func (r ResourceID) Key() resource.Key {
	t, _ := resource.ParseType(r.Type)
	return resource.Key{Type: t, Name: r.Name}
}

// Registry is the predefined-id table of one build.
type Registry struct {
	system map[resource.Key]ResourceID
	app    map[resource.Key]ResourceID
	all    map[int64]ResourceID
	logger zerolog.Logger
}

// New creates an empty registry
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		system: make(map[resource.Key]ResourceID),
		app:    make(map[resource.Key]ResourceID),
		all:    make(map[int64]ResourceID),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Ingest parses one declaration document into the system or application namespace.
// A document is committed whole or not at all.
func (r *Registry) Ingest(doc []byte, system bool) error {
	ids, err := parseDocument(doc, system)
	if err != nil {
		return err
	}
	staged := &Registry{
		system: make(map[resource.Key]ResourceID),
		app:    make(map[resource.Key]ResourceID),
		all:    make(map[int64]ResourceID),
	}
	for _, id := range ids {
		if err := r.check(id, system, staged); err != nil {
			return err
		}
		staged.commit(id, system)
	}
	for _, id := range ids {
		r.commit(id, system)
	}
	r.logger.Debug().
		Bool("system", system).
		Int("records", len(ids)).
		Msg("Ingested id declarations")
	return nil
}

// ParseRecords decodes an application-format document without registering it.
func ParseRecords(doc []byte) ([]ResourceID, error) {
	return parseDocument(doc, false)
}

// check reports a clash of id with the committed records or with records staged
// earlier from the same document.
func (r *Registry) check(id ResourceID, system bool, staged *Registry) error {
	for _, reg := range []*Registry{r, staged} {
		if prev, ok := reg.all[id.ID]; ok {
			return &common.UniquenessError{
				ID:    id.ID,
				Type:  id.Type,
				Names: []string{prev.Name, id.Name},
				Msg:   "records declare the same id",
			}
		}
		if prev, ok := reg.namespace(system)[id.Key()]; ok {
			return &common.UniquenessError{
				ID:    id.ID,
				Type:  id.Type,
				Names: []string{prev.Name, id.Name},
				Msg:   "the same type and name is declared twice",
			}
		}
	}
	return nil
}

func (r *Registry) commit(id ResourceID, system bool) {
	r.all[id.ID] = id
	r.namespace(system)[id.Key()] = id
}

func (r *Registry) namespace(system bool) map[resource.Key]ResourceID {
	if system {
		return r.system
	}
	return r.app
}

// App returns the application declaration for key.
func (r *Registry) App(key resource.Key) (ResourceID, bool) {
	id, ok := r.app[key]
	return id, ok
}

// System returns the system declaration for key.
func (r *Registry) System(key resource.Key) (ResourceID, bool) {
	id, ok := r.system[key]
	return id, ok
}

// IsAppDefined reports whether id is pinned by an application declaration.
func (r *Registry) IsAppDefined(id int64) bool {
	rid, ok := r.all[id]
	if !ok {
		return false
	}
	decl, ok := r.app[rid.Key()]
	return ok && decl.ID == id
}

// AppIDs returns every application declaration ordered by id.
func (r *Registry) AppIDs() []ResourceID {
	return sortedByID(r.app)
}

// SystemIDs returns every system declaration ordered by id.
func (r *Registry) SystemIDs() []ResourceID {
	return sortedByID(r.system)
}

// Len returns the number of declarations across both namespaces.
func (r *Registry) Len() int { return len(r.all) }

// ResetApp drops every application declaration.
func (r *Registry) ResetApp() {
	for key, id := range r.app {
		delete(r.all, id.ID)
		delete(r.app, key)
	}
}

func sortedByID(m map[resource.Key]ResourceID) []ResourceID {
	out := make([]ResourceID, 0, len(m))
	for _, id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func parseDocument(doc []byte, system bool) ([]ResourceID, error) {
	var root map[string]json.RawMessage
	if err := decodeJSON(doc, &root); err != nil || root == nil {
		return nil, common.NewValidationError(common.NoSeq, "", "document is not a JSON object")
	}

	var records []json.RawMessage
	raw, ok := root[fieldRecord]
	if !ok || decodeJSON(raw, &records) != nil || records == nil {
		return nil, common.NewValidationError(common.NoSeq, fieldRecord, "node is not an array")
	}
	if len(records) == 0 {
		return nil, common.NewValidationError(common.NoSeq, fieldRecord, "node is empty")
	}

	var startID int64
	if system {
		var err error
		if startID, err = parseStartID(root); err != nil {
			return nil, err
		}
	}

	ids := make([]ResourceID, 0, len(records))
	for seq, rec := range records {
		id, err := parseRecord(rec, int64(seq), system, startID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseStartID(root map[string]json.RawMessage) (int64, error) {
	raw, ok := root[fieldStartID]
	if !ok {
		return 0, common.NewConfigurationError("'%s' is missing in a system declaration document", fieldStartID)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, common.NewConfigurationError("'%s' is not a string", fieldStartID)
	}
	v, err := parseHex(s)
	if err != nil {
		return 0, common.NewValidationError(common.NoSeq, fieldStartID, "%q is not a hex number", s)
	}
	return v, nil
}

// parseRecord validates one record. The field set is closed: type and name are
// always required, then id for application records or order for system records.
func parseRecord(raw json.RawMessage, seq int64, system bool, startID int64) (ResourceID, error) {
	var fields map[string]json.RawMessage
	if err := decodeJSON(raw, &fields); err != nil || fields == nil {
		return ResourceID{}, common.NewValidationError(seq, "", "record is not an object")
	}

	id := ResourceID{Seq: seq, ID: startID}
	wanted := []string{fieldType, fieldName, fieldID}
	if system {
		wanted = []string{fieldType, fieldOrder, fieldName}
	}
	for _, field := range wanted {
		value, present := fields[field]
		if !present || isNull(value) {
			return ResourceID{}, common.NewValidationError(seq, field, "empty")
		}
		switch field {
		case fieldType:
			s, err := stringField(value, seq, field)
			if err != nil {
				return ResourceID{}, err
			}
			if _, ok := resource.ParseType(s); !ok {
				return ResourceID{}, common.NewValidationError(seq, field, "'%s' invalid", s)
			}
			id.Type = s
		case fieldName:
			s, err := stringField(value, seq, field)
			if err != nil {
				return ResourceID{}, err
			}
			if system && id.ID&SysNameCheckMask == SysNameCheckMask && !ValidName(s) {
				return ResourceID{}, common.NewValidationError(seq, field, "'%s' is not a valid name", s)
			}
			id.Name = s
		case fieldID:
			s, err := stringField(value, seq, field)
			if err != nil {
				return ResourceID{}, err
			}
			if !hexIDPattern.MatchString(s) {
				return ResourceID{}, common.NewValidationError(seq, field, "must be a hex string, eg:^0[xX][0-9a-fA-F]{8}")
			}
			v, _ := parseHex(s)
			if !InAppRange(v) {
				return ResourceID{}, common.NewValidationError(seq, field,
					"0x%08x must be in [0x%08x,0x%08x),[0x%08x,0x%08x)", v, AppIDLowMin, AppIDLowMax, AppIDHighMin, AppIDHighMax)
			}
			id.ID = v
		case fieldOrder:
			var n json.Number
			if bytes.HasPrefix(bytes.TrimSpace(value), []byte(`"`)) || decodeJSON(value, &n) != nil {
				return ResourceID{}, common.NewValidationError(seq, field, "not int")
			}
			order, err := strconv.ParseInt(n.String(), 10, 64)
			if err != nil {
				return ResourceID{}, common.NewValidationError(seq, field, "not int")
			}
			if order != seq {
				return ResourceID{}, common.NewValidationError(seq, field, "value %d vs expect %d", order, seq)
			}
			id.ID = startID + order
		}
	}
	return id, nil
}

// InAppRange reports whether id may be declared by an application document.
func InAppRange(id int64) bool {
	return (id >= AppIDLowMin && id < AppIDLowMax) || (id >= AppIDHighMin && id < AppIDHighMax)
}

func stringField(raw json.RawMessage, seq int64, field string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", common.NewValidationError(seq, field, "not string")
	}
	return s, nil
}

func parseHex(s string) (int64, error) {
	t := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if t == "" {
		return 0, fmt.Errorf("empty hex number")
	}
	return strconv.ParseInt(t, 16, 64)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeJSON decodes exactly one JSON value; trailing data is an error.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}

// ValidName reports whether name is usable as an identifier in generated headers.
func ValidName(name string) bool {
	return validNamePattern.MatchString(name)
}
