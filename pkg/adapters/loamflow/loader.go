package loamflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Loader reads a conversation flow from a Loam repository of markdown files.
// Each document's frontmatter names a block (id, name, start) and its body is
// the block's Lua script; a manifest document may declare modules instead.
type Loader struct {
	Repo *loam.TypedRepository[BlockMetadata]
}

// New creates a flow loader over an existing typed repository.
func New(repo *loam.TypedRepository[BlockMetadata]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a Loam repository at path and wraps it in a Loader.
// Strict mode keeps numeric frontmatter stable; the loader never writes.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	return New(loam.NewTypedRepository[BlockMetadata](repo)), nil
}

// Flow is the parsed content of a repository: the block graph plus the
// module manifest.
type Flow struct {
	Blocks  []domain.Block
	Modules []domain.Module
}

// Load reads every document and assembles the flow. It rejects duplicate
// block ids and more than one start block; a missing start block is left for
// the engine to report, since a partial repo may be merged with another
// source before serving.
func (l *Loader) Load(ctx context.Context) (*Flow, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	flow := &Flow{}
	seen := make(map[int64]string)
	startDoc := ""

	for _, doc := range docs {
		meta := doc.Data

		for _, raw := range meta.Modules {
			var entry ModuleEntry
			if err := mapstructure.Decode(raw, &entry); err != nil {
				return nil, fmt.Errorf("invalid module entry in '%s': %w", doc.ID, err)
			}
			if entry.Name == "" || entry.File == "" {
				return nil, fmt.Errorf("module entry in '%s' needs name and file", doc.ID)
			}
			flow.Modules = append(flow.Modules, domain.Module{
				Name:   entry.Name,
				File:   entry.File,
				Status: domain.ModuleStatusStop,
			})
		}

		if meta.ID == 0 {
			continue // manifest or draft document, no block
		}

		if existing, ok := seen[meta.ID]; ok {
			return nil, fmt.Errorf("collision detected: block id %d is defined in both '%s' and '%s'", meta.ID, existing, doc.ID)
		}
		seen[meta.ID] = doc.ID

		if meta.Start {
			if startDoc != "" {
				return nil, fmt.Errorf("two start blocks: '%s' and '%s'", startDoc, doc.ID)
			}
			startDoc = doc.ID
		}

		name := meta.Name
		if name == "" {
			name = trimExtension(doc.ID)
		}

		flow.Blocks = append(flow.Blocks, domain.Block{
			ID:      meta.ID,
			Name:    name,
			Script:  strings.TrimSpace(doc.Content),
			IsStart: meta.Start,
		})
	}

	return flow, nil
}

// Import loads the flow and upserts it into the store.
func (l *Loader) Import(ctx context.Context, store ports.FlowStore) (*Flow, error) {
	flow, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range flow.Blocks {
		if err := store.SaveBlock(ctx, &flow.Blocks[i]); err != nil {
			return nil, fmt.Errorf("save block %d: %w", flow.Blocks[i].ID, err)
		}
	}
	for i := range flow.Modules {
		if err := store.SaveModule(ctx, &flow.Modules[i]); err != nil {
			return nil, fmt.Errorf("save module '%s': %w", flow.Modules[i].Name, err)
		}
	}
	return flow, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
