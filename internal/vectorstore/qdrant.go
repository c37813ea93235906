// Package vectorstore adapts Qdrant to the pipeline's vector index
// contract: namespaced upsert, top-k similarity query with metadata
// filtering, fetch, and delete by ids, filter, or namespace.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/docstack/ragpipe/internal/apperr"
)

const (
	// upsertBatchSize bounds points per backend write.
	upsertBatchSize = 100

	// payload keys reserved by the adapter. Everything else in a point's
	// payload is caller metadata.
	payloadID        = "chunk_id"
	payloadNamespace = "namespace"
)

// Store wraps the Qdrant client with collection management and the
// namespace convention.
type Store struct {
	client    *qdrant.Client
	dimension uint64
	logger    *slog.Logger
}

// New creates a Store and verifies Qdrant is reachable, retrying the health
// check with exponential backoff before failing.
func New(host string, port int, dimension int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	s := &Store{
		client:    client,
		dimension: uint64(dimension),
		logger:    logger,
	}
	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", apperr.ErrIndexBackend, err)
	}
	return s, nil
}

func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	b := newBackoff()
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the chunk collection with cosine distance and
// payload indexes for the filterable fields. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", apperr.ErrIndexBackend, err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", apperr.ErrIndexBackend, err)
	}

	// Without payload indexes, filtered queries degrade badly at scale.
	for _, field := range []string{payloadNamespace, payloadID, "document_id", "content_type"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("%w: index field %s: %v", apperr.ErrIndexBackend, field, err)
		}
	}
	return nil
}

// Upsert writes entries into namespace, idempotently by id, in sub-batches.
// On partial failure the result reports how many entries were written
// before the failing batch, alongside the error.
func (s *Store) Upsert(ctx context.Context, entries []Entry, namespace string) (UpsertResult, error) {
	result := UpsertResult{Requested: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	for start := 0; start < len(entries); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(entries))
		batch := entries[start:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for i, entry := range batch {
			if len(entry.Vector) != int(s.dimension) {
				return result, fmt.Errorf("%w: entry %q has %d dimensions, expected %d",
					ErrDimensionMismatch, entry.ID, len(entry.Vector), s.dimension)
			}
			payload := map[string]any{
				payloadID:        entry.ID,
				payloadNamespace: namespace,
			}
			for k, v := range entry.Metadata {
				payload[k] = v
			}
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(entry.ID)),
				Vectors: qdrant.NewVectors(entry.Vector...),
				Payload: qdrant.NewValueMap(payload),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return result, fmt.Errorf("%w: upsert batch %d-%d (wrote %d of %d): %v",
				apperr.ErrIndexBackend, start, end, result.Upserted, result.Requested, err)
		}
		result.Upserted += len(batch)
	}

	s.logger.Debug("upserted vectors", "count", result.Upserted, "namespace", namespace)
	return result, nil
}

func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := newBackoff()
	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// Query returns the topK entries nearest to vector within namespace,
// ordered by descending cosine similarity. filter restricts results to
// entries whose metadata matches every key; exclude drops entries matching
// any of its keys.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, namespace string, filter, exclude map[string]string) ([]Match, error) {
	if len(vector) != int(s.dimension) {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 5
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         s.buildFilter(namespace, filter, exclude),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", apperr.ErrIndexBackend, err)
	}

	matches := make([]Match, 0, len(results))
	for _, point := range results {
		id, metadata := decodePayload(point.Payload)
		matches = append(matches, Match{
			ID:       id,
			Score:    point.Score,
			Metadata: metadata,
		})
	}
	return matches, nil
}

// Fetch returns the stored entries for ids within namespace, including
// vectors. Unknown ids and ids belonging to other namespaces are omitted.
func (s *Store) Fetch(ctx context.Context, ids []string, namespace string) (map[string]Entry, error) {
	if len(ids) == 0 {
		return map[string]Entry{}, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(pointID(id))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: CollectionName,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", apperr.ErrIndexBackend, err)
	}

	entries := make(map[string]Entry, len(points))
	for _, point := range points {
		if ns := point.Payload[payloadNamespace].GetStringValue(); ns != namespace {
			continue
		}
		id, metadata := decodePayload(point.Payload)
		var vector []float32
		if v := point.Vectors.GetVector(); v != nil {
			vector = v.Data
		}
		entries[id] = Entry{ID: id, Vector: vector, Metadata: metadata}
	}
	return entries, nil
}

// Delete removes the given ids from namespace.
func (s *Store) Delete(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	// Ids are already namespace-scoped through the chunk naming scheme,
	// but the filter keeps a stray id from crossing tenants.
	conditions := make([]*qdrant.Condition, 0, len(ids))
	for _, id := range ids {
		conditions = append(conditions, qdrant.NewMatch(payloadID, id))
	}
	filter := &qdrant.Filter{
		Must:   []*qdrant.Condition{qdrant.NewMatch(payloadNamespace, namespace)},
		Should: conditions,
	}
	return s.deletePoints(ctx, filter)
}

// DeleteByFilter removes every entry in namespace whose metadata matches
// all filter keys. Used for cascade deletes by document id.
func (s *Store) DeleteByFilter(ctx context.Context, filter map[string]string, namespace string) error {
	return s.deletePoints(ctx, s.buildFilter(namespace, filter, nil))
}

// DeleteAll removes every entry in namespace.
func (s *Store) DeleteAll(ctx context.Context, namespace string) error {
	return s.deletePoints(ctx, s.buildFilter(namespace, nil, nil))
}

func (s *Store) deletePoints(ctx context.Context, filter *qdrant.Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("%w: delete: %v", apperr.ErrIndexBackend, err)
	}
	return nil
}

// Count returns the number of entries in namespace.
func (s *Store) Count(ctx context.Context, namespace string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Filter:         s.buildFilter(namespace, nil, nil),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", apperr.ErrIndexBackend, err)
	}
	return count, nil
}

// Close closes the underlying client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// buildFilter composes the namespace condition with caller metadata
// filters. exclude entries become must-not conditions.
func (s *Store) buildFilter(namespace string, filter, exclude map[string]string) *qdrant.Filter {
	must := []*qdrant.Condition{qdrant.NewMatch(payloadNamespace, namespace)}
	for k, v := range filter {
		must = append(must, qdrant.NewMatch(k, v))
	}
	var mustNot []*qdrant.Condition
	for k, v := range exclude {
		mustNot = append(mustNot, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: must, MustNot: mustNot}
}

// decodePayload splits a point payload into the chunk id and caller
// metadata, dropping the adapter's reserved keys.
func decodePayload(payload map[string]*qdrant.Value) (string, map[string]string) {
	id := payload[payloadID].GetStringValue()
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == payloadID || k == payloadNamespace {
			continue
		}
		metadata[k] = v.GetStringValue()
	}
	return id, metadata
}

// pointID derives a deterministic UUID from a chunk id. Qdrant point ids
// must be UUIDs or integers; hashing keeps upserts idempotent by chunk id.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}
