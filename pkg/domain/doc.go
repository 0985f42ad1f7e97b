/*
Package domain contains the core domain models for the Arbor engine.

It defines the fundamental entities of a conversational flow: Blocks (scripted
graph nodes), BotUsers and their Sessions, per-user Params, the append-only
Trace log, and loadable Modules. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Block: a named unit of conversation logic with a script and a stable id.
  - BotUser / UserSession: the identity and the pointer to the user's current
    block, one session per (user, platform).
  - UserParam: persistent per-user key-value state, written by scripts.
  - Trace: one append-only row per message direction, for audit and debugging.
  - Module: an externally authored plugin loaded by name.
  - Message: an outbound payload (text, reply buttons, format, contact request).
*/
package domain
