package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/ZanzyTHEbar/respack/respack/registry"
	"github.com/ZanzyTHEbar/respack/respack/resource"
	"github.com/ZanzyTHEbar/respack/respack/restable"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type dumpDocument struct {
	Version   string        `yaml:"version" json:"version"`
	Resources []dumpedEntry `yaml:"resources" json:"resources"`
}

type dumpedEntry struct {
	ID    string       `yaml:"id" json:"id"`
	Type  string       `yaml:"type" json:"type"`
	Name  string       `yaml:"name" json:"name"`
	Items []dumpedItem `yaml:"items" json:"items"`
}

type dumpedItem struct {
	LimitKey string `yaml:"limitKey" json:"limitKey"`
	Data     string `yaml:"data" json:"data"`
}

func newDumpCmd() *cobra.Command {
	var (
		format string
		id     string
	)
	cmd := &cobra.Command{
		Use:   "dump <resources.index>",
		Short: "Print the content of a resource index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDump(afero.NewOsFs(), args[0], id)
			if err != nil {
				return err
			}
			return writeDump(cmd.OutOrStdout(), doc, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml|json")
	cmd.Flags().StringVar(&id, "id", "", "Only print this id, hex")
	return cmd
}

func loadDump(fs afero.Fs, path, only string) (*dumpDocument, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	hdr, err := restable.DecodeHeader(f)
	if err != nil {
		return nil, err
	}
	table, err := restable.Decode(f)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(table))
	if only != "" {
		id, err := parseHexID(only)
		if err != nil {
			return nil, err
		}
		if _, err := restable.FindItems(table, id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	} else {
		for id := range table {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	doc := &dumpDocument{Version: hdr.Version}
	for _, id := range ids {
		items := table[id]
		entry := dumpedEntry{
			ID:   fmt.Sprintf("0x%08x", id),
			Type: items[0].Type.String(),
			Name: items[0].Name,
		}
		for _, it := range items {
			entry.Items = append(entry.Items, dumpedItem{LimitKey: it.LimitKey.String(), Data: string(it.Data)})
		}
		doc.Resources = append(doc.Resources, entry)
	}
	return doc, nil
}

func writeDump(w io.Writer, doc any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format '%s'", format)
	}
}

func parseHexID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id '%s': %w", s, err)
	}
	return id, nil
}

// tableIDs lists the ids of a table grouped by type code, names ascending.
func tableIDs(table restable.Table) []registry.ResourceID {
	out := make([]registry.ResourceID, 0, len(table))
	for id, items := range table {
		if len(items) == 0 {
			continue
		}
		out = append(out, registry.ResourceID{ID: id, Type: items[0].Type.String(), Name: items[0].Name})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := typeCode(out[i].Type), typeCode(out[j].Type)
		if ti != tj {
			return ti < tj
		}
		return out[i].Name < out[j].Name
	})
	for i := range out {
		out[i].Seq = int64(i)
	}
	return out
}

func typeCode(name string) resource.Type {
	t, _ := resource.ParseType(name)
	return t
}
