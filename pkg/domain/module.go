package domain

// ModuleStatus reflects the last load attempt of a plugin, for operator
// visibility. A cached module keeps its status; reloading is never implicit.
type ModuleStatus string

const (
	ModuleStatusStop  ModuleStatus = "stop"
	ModuleStatusRun   ModuleStatus = "run"
	ModuleStatusError ModuleStatus = "error"
)

// Module is the record of a loadable plugin. File points at the plugin's Lua
// source, absolute or relative to the configured plugin root.
type Module struct {
	Name   string       `json:"name" yaml:"name"`
	File   string       `json:"file" yaml:"file"`
	Status ModuleStatus `json:"status" yaml:"status,omitempty"`
}
