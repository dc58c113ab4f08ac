// Package api provides the gRPC scoring service.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated code; payloads are decoded into Go types with mapstructure.
// The rule store and engine are not safe for concurrent use, so every
// handler runs under one mutex.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mailscore/internal/core/db"
	"github.com/solatis/mailscore/internal/score"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mailscore.v1.ScoringService"

// Full method names.
const (
	MethodCompile    = "/" + ServiceName + "/Compile"
	MethodScore      = "/" + ServiceName + "/Score"
	MethodAddRule    = "/" + ServiceName + "/AddRule"
	MethodRemoveRule = "/" + ServiceName + "/RemoveRule"
	MethodListRules  = "/" + ServiceName + "/ListRules"
)

// MaxBatchSize bounds the number of messages in one Score request.
const MaxBatchSize = 1000

// ScoringServer is the server API of the scoring service.
type ScoringServer interface {
	Compile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Score(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ScoringService implements ScoringServer on a score engine.
type ScoringService struct {
	mu      sync.Mutex
	engine  *score.Engine
	queries *db.Queries
	logger  *slog.Logger
}

// Option configures a ScoringService.
type Option func(*ScoringService)

// WithQueries enables persisting scores of requests that name a mailbox.
func WithQueries(q *db.Queries) Option {
	return func(s *ScoringService) { s.queries = q }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ScoringService) { s.logger = l }
}

// NewScoringService creates the service around engine.
func NewScoringService(engine *score.Engine, opts ...Option) (*ScoringService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	s := &ScoringService{engine: engine, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// SetEngine swaps the engine, for example after the rules file was
// reloaded. It waits for the request in progress to finish.
func (s *ScoringService) SetEngine(engine *score.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
}

// RegisterScoringServer registers srv on r.
func RegisterScoringServer(r grpc.ServiceRegistrar, srv ScoringServer) {
	r.RegisterService(&ScoringService_ServiceDesc, srv)
}

func unaryHandler(method string, call func(ScoringServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScoringServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ScoringServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ScoringService_ServiceDesc describes the scoring service for grpc.Server.
var ScoringService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScoringServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: unaryHandler(MethodCompile, ScoringServer.Compile)},
		{MethodName: "Score", Handler: unaryHandler(MethodScore, ScoringServer.Score)},
		{MethodName: "AddRule", Handler: unaryHandler(MethodAddRule, ScoringServer.AddRule)},
		{MethodName: "RemoveRule", Handler: unaryHandler(MethodRemoveRule, ScoringServer.RemoveRule)},
		{MethodName: "ListRules", Handler: unaryHandler(MethodListRules, ScoringServer.ListRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mailscore/v1/scoring.proto",
}

// Client calls the scoring service over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile checks a pattern and returns its canonical tree.
func (c *Client) Compile(ctx context.Context, pattern string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCompile, map[string]interface{}{"pattern": pattern}, opts...)
}

// Score scores a batch of messages. req follows the ScoreRequest layout.
func (c *Client) Score(ctx context.Context, req map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodScore, req, opts...)
}

// AddRule adds or updates a score rule.
func (c *Client) AddRule(ctx context.Context, pattern, value string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAddRule, map[string]interface{}{"pattern": pattern, "value": value}, opts...)
}

// RemoveRule removes a score rule, or every rule for "*".
func (c *Client) RemoveRule(ctx context.Context, pattern string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRemoveRule, map[string]interface{}{"pattern": pattern}, opts...)
}

// ListRules lists the rules in evaluation order.
func (c *Client) ListRules(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListRules, map[string]interface{}{}, opts...)
}
