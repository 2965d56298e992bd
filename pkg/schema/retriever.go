package schema

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/vectorstore"
)

// Retriever finds the schema fragments most relevant to a question vector.
type Retriever struct {
	store       vectorstore.Store
	topK        int
	maxDistance float64
	logger      *zap.Logger
}

// NewRetriever creates a Retriever. maxDistance of 0 disables the relevance
// cutoff.
func NewRetriever(store vectorstore.Store, topK int, maxDistance float64, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:       store,
		topK:        topK,
		maxDistance: maxDistance,
		logger:      logger,
	}
}

// Retrieve returns up to topK fragments nearest the question vector, most
// relevant first. An unpublished index reports SchemaIndexUnavailable; an
// empty result for a published index is not an error, generation decides
// what to do with no context.
func (r *Retriever) Retrieve(ctx context.Context, questionVector []float32) ([]models.SchemaFragment, error) {
	namespace, err := r.store.ResolveAlias(ctx, IndexAlias)
	if err != nil {
		if errors.Is(err, vectorstore.ErrAliasNotFound) {
			return nil, apperrors.New(apperrors.KindSchemaIndexUnavailable,
				"schema index has not been built yet", false, err)
		}
		return nil, apperrors.New(apperrors.KindSchemaIndexUnavailable,
			"schema index lookup failed", true, err)
	}

	matches, err := r.store.Search(ctx, namespace, questionVector, r.topK, r.maxDistance)
	if err != nil {
		return nil, apperrors.New(apperrors.KindSchemaIndexUnavailable,
			"schema index search failed", true, err)
	}

	fragments := make([]models.SchemaFragment, 0, len(matches))
	for _, m := range matches {
		fragments = append(fragments, models.SchemaFragment{
			Table:       m.Payload[payloadTable],
			Column:      m.Payload[payloadColumn],
			Description: m.Payload[payloadDescription],
			Hash:        m.Payload[payloadHash],
		})
	}

	r.logger.Debug("schema fragments retrieved",
		zap.String("namespace", namespace),
		zap.Int("count", len(fragments)))

	return fragments, nil
}
