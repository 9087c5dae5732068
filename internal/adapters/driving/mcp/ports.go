package mcp

import (
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Retrieval backs the search tool.
	Retrieval driving.RetrievalService

	// Answer backs the ask tool. Optional.
	Answer driving.AnswerService

	// Highlight backs the highlight tool. Optional.
	Highlight driving.HighlightService

	// Indexing backs the documents resources. Optional.
	Indexing driving.IndexingService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
