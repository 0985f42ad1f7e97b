/*
Package script executes block scripts inside a closed Lua interpreter.

Each run gets a fresh Lua state with the base, string, table and math
libraries opened and the file-loading primitives removed. The only free
variables a script sees are the capability table: input_text, event, and the
six primitives (get_param, set_param, send_message, go_to, start_module,
call_module), bound through the Bindings interface. Scripts have no file,
network, or process access.

The Lua value helpers (PushValue, ToGoValue) are shared with the module
manager, which runs plugin sources in the same kind of state.
*/
package script
