package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
)

// VectorMemory implements core.Memory over a vector store and an embedder.
// This is the explicit substitution for the recency-based Conversation
// retrieval policy: Recall performs semantic search over stored turns.
type VectorMemory struct {
	store      VectorStore
	embedder   Embedder
	collection string
	threshold  float32
}

// NewVectorMemory creates a vector-backed memory over the given collection.
func NewVectorMemory(store VectorStore, embedder Embedder, collection string) *VectorMemory {
	return &VectorMemory{
		store:      store,
		embedder:   embedder,
		collection: collection,
		threshold:  0.6,
	}
}

// Initialize ensures the collection exists with the embedder's dimension.
func (vm *VectorMemory) Initialize(ctx context.Context) error {
	vec, err := vm.embedder.Embed(ctx, "hello")
	if err != nil {
		return errors.New(errors.CodeMemory, "failed to probe embedding dimension", err)
	}

	if err := vm.store.CreateCollection(ctx, vm.collection, uint64(len(vec))); err != nil {
		// Creation fails when the collection already exists; a working
		// search confirms that case.
		if _, searchErr := vm.store.Search(ctx, vm.collection, vec, 1, 0.0); searchErr == nil {
			return nil
		}
		return errors.New(errors.CodeMemory, "failed to create collection", err).
			WithContext("collection", vm.collection)
	}
	return nil
}

// Record embeds and stores an input/output turn.
func (vm *VectorMemory) Record(ctx context.Context, inputText, outputText string, metadata map[string]any) error {
	content := fmt.Sprintf("User: %s\nAgent: %s", inputText, outputText)
	vector, err := vm.embedder.Embed(ctx, content)
	if err != nil {
		return errors.New(errors.CodeMemory, "failed to embed turn", err)
	}

	now := time.Now().UTC()
	payload := map[string]interface{}{
		"input":     inputText,
		"output":    outputText,
		"text":      content,
		"timestamp": now.Format(time.RFC3339),
	}
	for k, v := range metadata {
		payload[k] = v
	}

	point := Point{
		ID:        uuid.NewString(),
		Vector:    vector,
		Payload:   payload,
		Timestamp: now.Unix(),
	}

	if err := vm.store.Upsert(ctx, vm.collection, []Point{point}); err != nil {
		return errors.New(errors.CodeMemory, "failed to store turn", err)
	}
	return nil
}

// Recall embeds the query and returns the nearest stored turns.
func (vm *VectorMemory) Recall(ctx context.Context, query string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = 5
	}

	vector, err := vm.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.New(errors.CodeMemory, "failed to embed query", err)
	}

	results, err := vm.store.Search(ctx, vm.collection, vector, limit, vm.threshold)
	if err != nil {
		return nil, errors.New(errors.CodeMemory, "vector search failed", err)
	}

	turns := make([]core.Turn, 0, len(results))
	for _, r := range results {
		turn := core.Turn{}
		if v, ok := r.Point.Payload["input"].(string); ok {
			turn.Input = v
		}
		if v, ok := r.Point.Payload["output"].(string); ok {
			turn.Output = v
		}
		if v, ok := r.Point.Payload["text"].(string); ok {
			turn.Content = v
		}
		if v, ok := r.Point.Payload["timestamp"].(string); ok {
			turn.Timestamp = v
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear is not supported for vector memory; collections are managed
// out-of-band.
func (vm *VectorMemory) Clear(_ context.Context) error {
	return errors.New(errors.CodeMemory, "clear is not supported for vector memory", nil)
}

var _ core.Memory = (*VectorMemory)(nil)
