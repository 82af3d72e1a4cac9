package packager

import (
	"path"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/assets"
	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/resource"
	"github.com/ZanzyTHEbar/respack/respack/restable"
	"github.com/ZanzyTHEbar/respack/respack/scan"

	"github.com/rs/zerolog"
)

// dependSuffix renames resources imported from the entry module.
const dependSuffix = "_entry"

// importDependency adds the configured resources of the entry module's index to
// res. Strings keep their value and media files are copied under the new name.
func (p *Packager) importDependency(res *scan.Result, log zerolog.Logger) error {
	if p.cfg.DependEntry == "" {
		return nil
	}
	ids, err := p.cfg.DependIDValues()
	if err != nil {
		return err
	}
	indexPath := filepath.Join(p.cfg.DependEntry, internal.ResourceIndexFile)
	table, err := restable.Load(p.fs, indexPath)
	if err != nil {
		return common.WithSource(err, indexPath)
	}

	imported := 0
	for _, id := range ids {
		items, err := restable.FindItems(table, id)
		if err != nil {
			return common.WithSource(err, indexPath)
		}
		for _, it := range items {
			item, job, err := p.dependItem(it)
			if err != nil {
				return common.WithSource(err, indexPath)
			}
			if clash := findItem(res.Items, item); clash != nil {
				return &common.UniquenessError{
					ID:    id,
					Type:  item.Type.String(),
					Names: []string{clash.Name, item.Name},
					Msg:   "imported resource already exists for " + item.LimitKey.String(),
				}
			}
			res.Items = append(res.Items, item)
			if job != nil {
				res.Jobs = append(res.Jobs, *job)
			}
			imported++
		}
	}
	log.Debug().Str("entry", p.cfg.DependEntry).Int("items", imported).Msg("Imported entry module resources")
	return nil
}

// dependItem renames one entry module item. A media payload has the form
// <module>/<path>; its file is copied from the entry output into this output.
func (p *Packager) dependItem(it resource.Item) (resource.Item, *assets.Job, error) {
	name := it.Name + dependSuffix
	switch it.Type {
	case resource.String:
		return resource.Item{Type: it.Type, Name: name, LimitKey: it.LimitKey, Data: it.Data}, nil, nil
	case resource.Media:
		data := string(it.Data)
		sep := strings.IndexByte(data, '/')
		if sep < 0 {
			return resource.Item{}, nil, common.NewValidationError(common.NoSeq, "data", "media path '%s' has no module prefix", data)
		}
		rel := data[sep+1:]
		file := name + path.Ext(rel)
		dir := path.Dir(rel)
		job := &assets.Job{
			Src: filepath.Join(p.cfg.DependEntry, filepath.FromSlash(rel)),
			Dst: filepath.Join(p.cfg.Output, filepath.FromSlash(dir), file),
		}
		item := resource.Item{
			Type:     it.Type,
			Name:     name,
			LimitKey: it.LimitKey,
			Data:     []byte(path.Join(p.cfg.ModuleName, dir, file)),
		}
		return item, job, nil
	default:
		return resource.Item{}, nil, common.NewValidationError(common.NoSeq, "type", "%s resources cannot be imported from the entry module", it.Type)
	}
}

func findItem(items []resource.Item, want resource.Item) *resource.Item {
	for i := range items {
		if items[i].Key() == want.Key() && items[i].LimitKey.Equal(want.LimitKey) {
			return &items[i]
		}
	}
	return nil
}
