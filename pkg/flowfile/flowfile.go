// Package flowfile reads and writes YAML flow bundles: a flat file holding
// the block graph and the module manifest, used for seeding a store and for
// exporting a running bot's flow.
package flowfile

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"gopkg.in/yaml.v3"
)

// File is one flow bundle.
type File struct {
	Blocks  []domain.Block  `yaml:"blocks"`
	Modules []domain.Module `yaml:"modules,omitempty"`
}

// Parse decodes and validates a bundle.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode flow file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads a bundle from disk.
func Load(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flow file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

func (f *File) validate() error {
	seen := make(map[int64]string)
	startID := int64(0)
	for _, b := range f.Blocks {
		if b.ID == 0 {
			return fmt.Errorf("block '%s' has no id", b.Name)
		}
		if other, ok := seen[b.ID]; ok {
			return fmt.Errorf("duplicate block id %d ('%s' and '%s')", b.ID, other, b.Name)
		}
		seen[b.ID] = b.Name
		if b.IsStart {
			if startID != 0 {
				return fmt.Errorf("two start blocks: %d and %d", startID, b.ID)
			}
			startID = b.ID
		}
	}
	names := make(map[string]bool)
	for _, m := range f.Modules {
		if m.Name == "" || m.File == "" {
			return fmt.Errorf("module entries need name and file")
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate module '%s'", m.Name)
		}
		names[m.Name] = true
	}
	return nil
}

// Import upserts the bundle into the store.
func (f *File) Import(ctx context.Context, store ports.FlowStore) error {
	for i := range f.Blocks {
		if err := store.SaveBlock(ctx, &f.Blocks[i]); err != nil {
			return fmt.Errorf("save block %d: %w", f.Blocks[i].ID, err)
		}
	}
	for i := range f.Modules {
		m := f.Modules[i]
		if m.Status == "" {
			m.Status = domain.ModuleStatusStop
		}
		if err := store.SaveModule(ctx, &m); err != nil {
			return fmt.Errorf("save module '%s': %w", m.Name, err)
		}
	}
	return nil
}

// Export reads the whole flow out of a store and writes it as YAML.
func Export(ctx context.Context, store ports.FlowStore, w io.Writer) error {
	blocks, err := store.ListBlocks(ctx)
	if err != nil {
		return fmt.Errorf("list blocks: %w", err)
	}

	f := File{Blocks: blocks}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("encode flow file: %w", err)
	}
	return enc.Close()
}
