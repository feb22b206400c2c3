// Package acp defines the wire-level types for the Agent Client Protocol:
// JSON-RPC 2.0 frames over newline-delimited JSON, the typed ACP message
// surface (initialize, session lifecycle, prompts, session updates, permission
// and file-system requests), and the codec that reads and writes frames.
//
// acpgate speaks ACP on both sides: as a server toward the editor client and
// as a client toward the subordinate agent CLI. Both links share these types.
package acp
