// Package vector implements the namespaced vector store on Qdrant over
// gRPC. Namespaces are a payload field plus filter, so one collection holds
// every knowledge partition and deleting a namespace is a filtered delete.
package vector

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/sourcehr/engine/internal/pipeline"
)

const namespaceKey = "namespace"

type Options struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
	Dimension  int
}

type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
	logger      *zap.Logger
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// NewStore connects to Qdrant. An API key implies TLS (cloud); otherwise
// local insecure mode unless UseTLS is set.
func NewStore(opts Options, logger *zap.Logger) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	var dialOpts []grpc.DialOption
	if opts.UseTLS || opts.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
		if opts.APIKey != "" {
			dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(apiKeyInterceptor(opts.APIKey)))
		}
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  opts.Collection,
		dimension:   opts.Dimension,
		logger:      logger.Named("qdrant"),
	}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

// EnsureCollection creates the shared collection if absent and verifies the
// vector size if present.
func (s *Store) EnsureCollection(ctx context.Context) error {
	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(s.dimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", s.collection, size, s.dimension)
		}
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	s.logger.Info("created collection",
		zap.String("collection", s.collection),
		zap.Int("dimension", s.dimension))
	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, false
	}
	if size := params.GetSize(); size > 0 {
		return size, true
	}
	return 0, false
}

// Upsert writes one point with its namespace stamped into the payload.
func (s *Store) Upsert(ctx context.Context, rec pipeline.VectorRecord) error {
	payload := make(map[string]*pb.Value, len(rec.Metadata)+1)
	for k, v := range rec.Metadata {
		payload[k] = toValue(v)
	}
	payload[namespaceKey] = toValue(rec.Namespace)

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points: []*pb.PointStruct{{
			Id:      pointID(rec.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Vector}}},
			Payload: payload,
		}},
	})
	if err != nil {
		return &pipeline.IngestError{RecordID: rec.ID, Err: err}
	}
	return nil
}

// Delete removes points by id. Unknown ids are ignored by the server.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

// DeleteNamespace removes every point in a namespace. An empty or unknown
// namespace deletes nothing and is still success.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: namespaceFilter(namespace),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete namespace %s: %w", namespace, err)
	}
	return nil
}

// Match is one scored result of a similarity query.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Query searches a namespace for the k nearest points.
func (s *Store) Query(ctx context.Context, vec []float32, namespace string, k int) ([]Match, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Limit:          uint64(k),
		Filter:         namespaceFilter(namespace),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search namespace %s: %w", namespace, err)
	}

	matches := make([]Match, len(resp.Result))
	for i, scored := range resp.Result {
		matches[i] = Match{
			ID:       scored.Id.GetUuid(),
			Score:    scored.Score,
			Metadata: fromPayload(scored.Payload),
		}
	}
	return matches, nil
}

func namespaceFilter(namespace string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   namespaceKey,
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: namespace}},
				},
			},
		}},
	}
}

func pointID(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func toValue(v any) *pb.Value {
	switch x := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: x}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: x}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(x)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: x}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: x}}
	case []string:
		values := make([]*pb.Value, len(x))
		for i, s := range x {
			values[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprintf("%v", x)}}
	}
}

func fromPayload(payload map[string]*pb.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.Kind.(type) {
		case *pb.Value_StringValue:
			out[k] = kind.StringValue
		case *pb.Value_BoolValue:
			out[k] = kind.BoolValue
		case *pb.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *pb.Value_ListValue:
			var items []string
			for _, item := range kind.ListValue.Values {
				items = append(items, item.GetStringValue())
			}
			out[k] = items
		}
	}
	return out
}
