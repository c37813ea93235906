// Package apperr defines the error taxonomy shared across the pipeline.
//
// Every package wraps these sentinels with fmt.Errorf("...: %w", ...) so
// callers can classify failures with errors.Is without depending on the
// package that produced them. The boundary layer maps them to response
// codes; nothing in here knows about wire protocols.
package apperr

import "errors"

var (
	// ErrFormatUnsupported indicates a document format outside the
	// supported set (pdf, docx, txt, md).
	ErrFormatUnsupported = errors.New("unsupported document format")

	// ErrNotFound indicates a missing document, session, or job.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a malformed request, e.g. a summarize
	// request carrying neither text nor a document id.
	ErrValidation = errors.New("invalid request")

	// ErrEmbeddingBackend indicates the embedding backend failed after
	// bounded retries.
	ErrEmbeddingBackend = errors.New("embedding backend failure")

	// ErrGenerationBackend indicates the generative backend failed after
	// bounded retries, or returned output violating the structured
	// output contract.
	ErrGenerationBackend = errors.New("generation backend failure")

	// ErrRetrieval indicates vector search failed before generation ran.
	ErrRetrieval = errors.New("retrieval failure")

	// ErrIndexBackend indicates the vector index failed an upsert, fetch,
	// or delete after bounded retries.
	ErrIndexBackend = errors.New("vector index backend failure")
)
