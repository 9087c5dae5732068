// Package mcp exposes plancite retrieval, answering and highlighting
// to AI assistants over the Model Context Protocol.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
