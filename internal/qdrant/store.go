// Package qdrant stores chunk embeddings in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mfenderov/samanta/internal/vectorstore"
	"github.com/mfenderov/samanta/pkg/models"
)

// pointNamespace derives stable point UUIDs from chunk IDs.
var pointNamespace = uuid.MustParse("8f1c2f8e-5a2b-4d53-9a0e-5f0c1b7d2e61")

// Store implements vectorstore.Store on a Qdrant collection.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dims        int
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr, collection string, dims int) (*Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant: collection is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("qdrant: embedding dimensions must be positive")
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dims:        dims,
	}, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// PointID maps a chunk ID to its Qdrant point UUID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	slog.Debug("created qdrant collection", "collection", s.collection, "dims", s.dims)
	return nil
}

// Upsert stores records as points keyed by their chunk ID.
func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: payload(r),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(records), err)
	}
	return nil
}

func payload(r vectorstore.Record) map[string]*pb.Value {
	return map[string]*pb.Value{
		"chunk_id": {Kind: &pb.Value_StringValue{StringValue: r.ID}},
		"index":    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Index)}},
		"content":  {Kind: &pb.Value_StringValue{StringValue: r.Content}},
	}
}

// Search performs k-NN similarity search.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	chunks := make([]models.Chunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		chunks[i] = chunkFromPayload(r.GetPayload())
		chunks[i].Score = r.GetScore()
	}
	return chunks, nil
}

func chunkFromPayload(p map[string]*pb.Value) models.Chunk {
	return models.Chunk{
		ID:      p["chunk_id"].GetStringValue(),
		Index:   int(p["index"].GetIntegerValue()),
		Content: p["content"].GetStringValue(),
	}
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Reset deletes and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete collection %s: %w", s.collection, err)
	}
	return s.EnsureCollection(ctx)
}
