package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"docrag/internal/domain"
)

const (
	payloadDocID = "doc_id"
	payloadText  = "text"
)

// QdrantConfig holds connection details for a Qdrant server.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantVectorStore keeps records in a Qdrant collection using cosine
// distance. Qdrant point ids must be UUIDs, so the document id is mapped to a
// name-based UUID and kept verbatim in the payload.
type QdrantVectorStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	model      string
}

func NewQdrantVectorStore(ctx context.Context, cfg QdrantConfig, opts Options) (*QdrantVectorStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if opts.Collection == "" {
		opts.Collection = "documents"
	}
	if opts.Dimension <= 0 {
		return nil, qdrantErr("open", errors.New("qdrant collections need a known vector dimension"))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, qdrantErr("open", err)
	}

	s := &QdrantVectorStore{
		client:     client,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		model:      opts.Model,
	}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantVectorStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return qdrantErr("open", err)
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(s.dimension),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		}); err != nil {
			return qdrantErr("open", fmt.Errorf("create collection: %w", err))
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return qdrantErr("open", err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && int(size) != s.dimension {
		return qdrantErr("open", fmt.Errorf("%w: collection has %d, configured %d", domain.ErrDimensionMismatch, size, s.dimension))
	}
	return nil
}

// PointID maps a document id to its Qdrant point id.
func (s *QdrantVectorStore) PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.collection+"/"+id)).String()
}

func (s *QdrantVectorStore) Put(ctx context.Context, id, text string, embedding []float32) error {
	if id == "" {
		return qdrantErr("put", domain.ErrEmptyID)
	}
	if err := checkDimension(s.dimension, len(embedding)); err != nil {
		return qdrantErr("put", err)
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(s.PointID(id)),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadDocID: id,
				payloadText:  text,
			}),
		}},
	})
	if err != nil {
		return qdrantErr("put", err)
	}
	return nil
}

func (s *QdrantVectorStore) Query(ctx context.Context, embedding []float32, k int) (domain.QueryResult, error) {
	if k <= 0 {
		return domain.QueryResult{}, nil
	}
	if err := checkDimension(s.dimension, len(embedding)); err != nil {
		return nil, qdrantErr("query", err)
	}

	limit := uint64(k)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, qdrantErr("query", err)
	}

	hits := make([]domain.Hit, 0, len(resp))
	for _, p := range resp {
		payload := p.GetPayload()
		hits = append(hits, domain.Hit{
			ID:       payload[payloadDocID].GetStringValue(),
			Text:     payload[payloadText].GetStringValue(),
			Distance: 1 - float64(p.GetScore()),
		})
	}
	return rankHits(hits, k), nil
}

func (s *QdrantVectorStore) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, qdrantErr("count", err)
	}
	return int(n), nil
}

func (s *QdrantVectorStore) Exists(ctx context.Context, id string) (bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(s.PointID(id))},
	})
	if err != nil {
		return false, qdrantErr("exists", err)
	}
	return len(points) > 0, nil
}

func (s *QdrantVectorStore) Info(ctx context.Context) (domain.CollectionInfo, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	return domain.CollectionInfo{
		Backend:   "qdrant",
		Name:      s.collection,
		Count:     n,
		Model:     s.model,
		Dimension: s.dimension,
	}, nil
}

func (s *QdrantVectorStore) Close() error {
	return s.client.Close()
}

func qdrantErr(op string, err error) error {
	return &domain.StorageError{Backend: "qdrant", Op: op, Err: err}
}
