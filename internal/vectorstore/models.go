package vectorstore

// CollectionName is the single Qdrant collection for all namespaces.
// Namespaces are a payload field so cross-namespace maintenance (and
// cascade deletes by metadata filter) stay within one collection.
const CollectionName = "chunks"

// Entry is the unit stored in the vector index: one vector, its chunk id,
// and the metadata subset used for filtering. Its lifecycle is tied to the
// chunk it represents.
type Entry struct {
	ID       string            // Chunk id, e.g. "<docID>_chunk_3"
	Vector   []float32         // Fixed-dimension embedding
	Metadata map[string]string // Includes "document_id" for cascade deletes
}

// Match is a query result ordered by descending similarity score.
// Ordering among equal scores is backend-defined and not stable.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// UpsertResult reports how many entries were actually written versus
// requested. The two differ only on partial batch failure.
type UpsertResult struct {
	Upserted  int
	Requested int
}
