package domain

// Block represents a logical unit in the conversation graph.
// Blocks are authored externally (editor, flow files); the engine only reads them.
type Block struct {
	// ID is the stable identifier referenced by scripts via go_to.
	ID int64 `json:"id" yaml:"id"`

	Name string `json:"name" yaml:"name"`

	// Script holds the block's Lua source. It runs against the capability
	// table only: input_text, event, get_param, set_param, send_message,
	// go_to, start_module, call_module.
	Script string `json:"script" yaml:"script"`

	// IsStart marks the entry block for new sessions. Exactly one block
	// should carry it; the engine fails the turn when none does.
	IsStart bool `json:"is_start" yaml:"is_start"`
}
