// Package mcp implements the MCP JSON-RPC 2.0 dispatcher that sits behind
// the gateway edge.
//
// # Overview
//
// Every call arrives already bound to a resolved endpoint and its
// credential. The dispatcher recognizes five methods — initialize,
// notifications/initialized, ping, tools/list, and tools/call — and routes
// tools/call through the service adapter registered for the endpoint's
// service kind. Every other method name is a JSON-RPC -32601.
//
// # Error codes
//
// -32700 parse error, -32600 invalid envelope, -32601 method/tool not
// found, -32602 invalid params, -32000 generic server/config fault,
// -32003 quota exceeded. -32001/-32002 (endpoint not found/inactive) are
// raised one layer up, by the gateway edge's endpoint resolution.
package mcp
