// Connect-RPC facade over the Engine: a hand-written service whose
// methods take *connect.Request[T]/*connect.Response[T] of plain
// JSON-tagged Go structs, with no protobuf codegen. connect-go's
// built-in codecs expect proto.Message, so jsonCodec below supplies the
// encoding/json-backed codec that lets these structs ride the unary
// handler machinery.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/spherical-ai/hybridstore/internal/errs"
	"github.com/spherical-ai/hybridstore/internal/hybridstore"
	"github.com/spherical-ai/hybridstore/internal/ingestion"
)

const (
	procedureAddPoint = "/hybridstore.v1.Engine/AddPoint"
	procedureSearch   = "/hybridstore.v1.Engine/Search"
	procedureIngest   = "/hybridstore.v1.Engine/Ingest"
)

// AddPointRequest mirrors hybridstore.Store.AddPoint's arguments.
type AddPointRequest struct {
	FromID        *int64    `json:"fromId,omitempty"`
	Layer         int       `json:"layer"`
	Dimension     int       `json:"dimension"`
	Weight        float64   `json:"weight"`
	SingularityID *int64    `json:"singularityId,omitempty"`
	UserID        *int64    `json:"userId,omitempty"`
	Payload       string    `json:"payload"`
	Vector        []float32 `json:"vector,omitempty"`
}

// AddPointResponse carries the newly allocated point id.
type AddPointResponse struct {
	ID int64 `json:"id"`
}

// SearchRPCRequest mirrors hybridstore.SearchRequest over the wire.
type SearchRPCRequest struct {
	Query          string  `json:"query"`
	EmbeddingType  string  `json:"embeddingType,omitempty"`
	SingularityID  *int64  `json:"singularityId,omitempty"`
	Dimension      *int    `json:"dimension,omitempty"`
	Layer          *int    `json:"layer,omitempty"`
	Limit          int     `json:"limit"`
	ScoreThreshold float32 `json:"scoreThreshold,omitempty"`
}

// SearchRPCResponse wraps the hit list.
type SearchRPCResponse struct {
	Hits []hybridstore.SearchHit `json:"hits"`
}

// IngestRPCRequest mirrors ingestion.Request over the wire.
type IngestRPCRequest struct {
	Payload       []byte         `json:"payload"`
	ResourceID    string         `json:"resourceId,omitempty"`
	ContentType   string         `json:"contentType,omitempty"`
	SingularityID *int64         `json:"singularityId,omitempty"`
	UserID        *int64         `json:"userId,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// IngestRPCResponse mirrors ingestion.Result over the wire.
type IngestRPCResponse struct {
	ResourcePointID  int64   `json:"resourcePointId"`
	FragmentPointIDs []int64 `json:"fragmentPointIds"`
	SegmentIDs       []int64 `json:"segmentIds"`
	ParserType       string  `json:"parserType"`
	TotalFragments   int     `json:"totalFragments"`
}

// Service exposes AddPoint/Search/Ingest as unary Connect RPCs over an
// Engine. It is a thin translation layer: validation and domain logic
// stay in hybridstore.Store and ingestion.Pipeline.
type Service struct {
	eng *Engine
}

// NewService wraps eng for RPC dispatch.
func NewService(eng *Engine) *Service {
	return &Service{eng: eng}
}

// AddPoint creates a point, optionally auto-creating a segment from
// req.FromID (hybridstore.Store.AddPoint's own semantics).
func (s *Service) AddPoint(ctx context.Context, req *connect.Request[AddPointRequest]) (*connect.Response[AddPointResponse], error) {
	msg := req.Msg
	point := hybridstore.Point{
		Layer:         msg.Layer,
		Dimension:     msg.Dimension,
		Weight:        msg.Weight,
		SingularityID: msg.SingularityID,
		UserID:        msg.UserID,
		Payload:       msg.Payload,
	}

	id, err := s.eng.Store.AddPoint(ctx, msg.FromID, point, msg.Vector)
	if err != nil {
		return nil, translateError(err)
	}
	return connect.NewResponse(&AddPointResponse{ID: id}), nil
}

// Search runs a filtered similarity search.
func (s *Service) Search(ctx context.Context, req *connect.Request[SearchRPCRequest]) (*connect.Response[SearchRPCResponse], error) {
	msg := req.Msg
	if msg.Query == "" && msg.Limit <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query or limit is required"))
	}

	hits, err := s.eng.Search(ctx, hybridstore.SearchRequest{
		Query:          msg.Query,
		EmbeddingType:  msg.EmbeddingType,
		SingularityID:  msg.SingularityID,
		Dimension:      msg.Dimension,
		Layer:          msg.Layer,
		Limit:          msg.Limit,
		ScoreThreshold: msg.ScoreThreshold,
	})
	if err != nil {
		return nil, translateError(err)
	}
	return connect.NewResponse(&SearchRPCResponse{Hits: hits}), nil
}

// Ingest parses and materializes a payload via the ingestion pipeline.
func (s *Service) Ingest(ctx context.Context, req *connect.Request[IngestRPCRequest]) (*connect.Response[IngestRPCResponse], error) {
	msg := req.Msg
	if len(msg.Payload) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("payload is required"))
	}

	result, err := s.eng.Pipeline.Ingest(ctx, ingestion.Request{
		Payload:       msg.Payload,
		ResourceID:    msg.ResourceID,
		ContentType:   msg.ContentType,
		SingularityID: msg.SingularityID,
		UserID:        msg.UserID,
		Metadata:      msg.Metadata,
	})
	if err != nil {
		return nil, translateError(err)
	}
	return connect.NewResponse(&IngestRPCResponse{
		ResourcePointID:  result.ResourcePointID,
		FragmentPointIDs: result.FragmentPointIDs,
		SegmentIDs:       result.SegmentIDs,
		ParserType:       result.ParserType,
		TotalFragments:   result.TotalFragments,
	}), nil
}

// translateError maps the sentinel taxonomy in internal/errs onto
// Connect status codes.
func translateError(err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrInvalidPayload):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrParserNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, errs.ErrParserNotApplicable), errors.Is(err, errs.ErrEmptyParse):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, errs.ErrUpstreamFailure):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, errs.ErrInconsistency), errors.Is(err, errs.ErrEmbeddingMismatch):
		return connect.NewError(connect.CodeInternal, err)
	default:
		return connect.NewError(connect.CodeUnknown, err)
	}
}

// jsonCodec is a connect.Codec over encoding/json, so Service's plain
// structs can ride Connect's unary RPC machinery without a protobuf
// schema. Connect picks a codec by the "json"/"proto" name a client
// requests; registering ours under "json" replaces the protojson codec
// that would otherwise reject non-proto.Message types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

// NewHandler mounts Service's three RPCs on a fresh mux under
// hybridstore.v1.Engine, using jsonCodec in place of the protobuf
// codecs connect.NewUnaryHandler registers by default.
func NewHandler(svc *Service) (string, http.Handler) {
	mux := http.NewServeMux()
	codecOpt := connect.WithCodec(jsonCodec{})

	mux.Handle(procedureAddPoint, connect.NewUnaryHandler(procedureAddPoint, svc.AddPoint, codecOpt))
	mux.Handle(procedureSearch, connect.NewUnaryHandler(procedureSearch, svc.Search, codecOpt))
	mux.Handle(procedureIngest, connect.NewUnaryHandler(procedureIngest, svc.Ingest, codecOpt))

	return "/hybridstore.v1.Engine/", mux
}
