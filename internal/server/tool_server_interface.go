// Package server provides the MCP server implementation for the kbrag service.
package server

// KnowledgeToolServer defines the interface for the MCP server that handles
// knowledge-base tool calls from MCP clients.
type KnowledgeToolServer interface {
	// Initialize initializes the server with dependencies and configurations.
	Initialize() error

	// Start starts the MCP server on the specified transport.
	Start() error

	// Stop gracefully shuts down the MCP server.
	Stop() error
}
