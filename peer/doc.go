// Package peer provides the duplex JSON-RPC connection abstraction used on
// both sides of the proxy, plus the subordinate agent subprocess manager.
//
// A Conn multiplexes outgoing requests (auto-incrementing numeric ids, pending
// entries resolved by matching response id, out-of-order resolution supported)
// with peer-initiated requests and notifications, which are delivered to a
// Handler. One Conn wraps the editor client's stdio; one Conn per session
// wraps a spawned agent process's stdio.
package peer
