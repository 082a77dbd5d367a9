// Package tools defines the tool names and request/response schemas
// for the kbrag knowledge-base service.
package tools

const (
	// ToolIngestDocument is the name of the ingest_document MCP tool
	ToolIngestDocument = "ingest_document"

	// ToolQueryKnowledge is the name of the query_knowledge MCP tool
	ToolQueryKnowledge = "query_knowledge"

	// ToolIndexStats is the name of the index_stats MCP tool
	ToolIndexStats = "index_stats"

	// DefaultQueryBreadth is the number of chunks retrieved
	// when no breadth is specified in a query_knowledge request
	DefaultQueryBreadth = 3
)

// IngestDocumentRequest defines the input schema for ingest_document tool
type IngestDocumentRequest struct {
	// Path is the location of the document to ingest (.txt, .md or .pdf)
	Path string `json:"path"`

	// Source is an optional label recorded with every chunk of the
	// document; defaults to Path when empty
	Source string `json:"source,omitempty"`

	// ReplaceExisting discards the persisted index before ingesting
	// instead of appending to it
	ReplaceExisting bool `json:"replace_existing,omitempty"`
}

// IngestDocumentResponse defines the output schema for ingest_document tool
type IngestDocumentResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// Ingested is the total number of chunks in the index after the run
	Ingested int `json:"ingested"`

	// Source is the label the document's chunks were recorded under
	Source string `json:"source"`

	// TimeSeconds is how long the ingestion took
	TimeSeconds float64 `json:"time_seconds"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`

	// Code is a machine-readable error code if Status is "error"
	Code string `json:"code,omitempty"`
}

// QueryKnowledgeRequest defines the input schema for query_knowledge tool
type QueryKnowledgeRequest struct {
	// Question is the natural-language question to answer
	Question string `json:"question"`

	// Breadth is the number of chunks to retrieve as context.
	// If not specified, DefaultQueryBreadth will be used; a negative
	// value retrieves every chunk in the index
	Breadth int `json:"breadth,omitempty"`
}

// QueryKnowledgeResponse defines the output schema for query_knowledge tool
type QueryKnowledgeResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// Answer is the generated answer text
	Answer string `json:"answer"`

	// Sources lists the chunks the answer was synthesized from,
	// closest match first
	Sources []SourceRef `json:"sources"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`

	// Code is a machine-readable error code if Status is "error"
	Code string `json:"code,omitempty"`
}

// SourceRef identifies one retrieved chunk that contributed to an answer
type SourceRef struct {
	// Source is the label the chunk was ingested under
	Source string `json:"source"`

	// Excerpt is a short preview of the chunk content
	Excerpt string `json:"excerpt"`
}

// IndexStatsRequest defines the input schema for index_stats tool
type IndexStatsRequest struct{}

// IndexStatsResponse defines the output schema for index_stats tool
type IndexStatsResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// Exists reports whether a persisted index is present on disk
	Exists bool `json:"exists"`

	// Chunks is the number of entries in the index
	Chunks int `json:"chunks"`

	// Dimension is the embedding dimension the index was built with
	Dimension int `json:"dimension"`

	// Path is the location of the index database file
	Path string `json:"path"`

	// SizeBytes is the size of the index database file on disk
	SizeBytes int64 `json:"size_bytes"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`

	// Code is a machine-readable error code if Status is "error"
	Code string `json:"code,omitempty"`
}
