package loamflow

// BlockMetadata is the frontmatter of one flow document. The document body is
// the block's Lua script.
type BlockMetadata struct {
	// ID is the block id referenced by go_to. Zero means the document does
	// not define a block (e.g. a modules-only manifest).
	ID int64 `json:"id" mapstructure:"id"`

	Name string `json:"name" mapstructure:"name"`

	// Start marks the flow's entry block.
	Start bool `json:"start" mapstructure:"start"`

	// Modules declares plugins, usually from a dedicated manifest document.
	// Entries are maps with "name" and "file" keys.
	Modules []any `json:"modules" mapstructure:"modules"`
}

// ModuleEntry is one decoded item of the modules manifest.
type ModuleEntry struct {
	Name string `json:"name" mapstructure:"name"`
	File string `json:"file" mapstructure:"file"`
}
