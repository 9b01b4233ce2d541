package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/tasks"
)

const extractionServiceName = "guideline.v1.ExtractionService"

// ExtractionServer is the gRPC surface of the task API.
type ExtractionServer interface {
	SubmitPath(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetTask(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListTasks(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	DeleteTask(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

type ExtractionService struct {
	tasks      TaskRegistry
	submitter  Submitter
	submitRoot string
	log        *slog.Logger
}

var _ ExtractionServer = (*ExtractionService)(nil)

// NewExtractionService builds the service. SubmitPath only reads files below submitRoot;
// an empty submitRoot disables it.
func NewExtractionService(reg TaskRegistry, sub Submitter, submitRoot string, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{tasks: reg, submitter: sub, submitRoot: submitRoot, log: logger}
}

// SubmitPath starts extraction of a document already on the server's filesystem.
// Relative paths are taken relative to the submit root.
func (s *ExtractionService) SubmitPath(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.submitRoot == "" {
		return nil, status.Error(codes.FailedPrecondition, "submitting server paths is disabled")
	}
	path := req.GetValue()
	if err := common.ValidateAndReturnError(common.NewValidator().Field("path", path, common.Required, common.DocumentName)); err != nil {
		return nil, err
	}
	path, err := s.underRoot(path)
	if err != nil {
		s.log.WarnContext(ctx, "grpc.submit.outside_root", "path", req.GetValue(), "root", s.submitRoot)
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, common.InvalidArgumentErrorf("path %q is not a readable file", path)
	}

	snap, err := s.submitter.SubmitFile(path, filepath.Base(path))
	if err != nil {
		if errors.Is(err, tasks.ErrQueueFull) || errors.Is(err, tasks.ErrShuttingDown) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		s.log.ErrorContext(ctx, "grpc.submit.failed", "path", path, "error", err)
		return nil, common.InternalErrorf("submit %s: %v", path, err)
	}
	s.log.InfoContext(ctx, "grpc.submit.ok", "task_id", snap.ID, "path", path)
	snap.Message = "task submitted, processing"
	return toStruct(snap)
}

// underRoot resolves path, following symlinks, and rejects anything that lands outside the submit root.
func (s *ExtractionService) underRoot(path string) (string, error) {
	root, err := filepath.Abs(s.submitRoot)
	if err != nil {
		return "", common.InternalErrorf("resolve submit root: %v", err)
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if r, err := filepath.EvalSymlinks(path); err == nil {
		path = r
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", common.InvalidArgumentErrorf("path %q is outside the submit root", path)
	}
	return path, nil
}

func (s *ExtractionService) GetTask(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, common.InvalidArgumentError("task id is required")
	}
	snap, err := s.tasks.Get(req.GetValue())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundError("task not found")
		}
		return nil, common.InternalError(err.Error())
	}
	return toStruct(snap)
}

func (s *ExtractionService) ListTasks(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	list := s.tasks.List()
	return toStruct(taskListResponse{Tasks: list, Total: len(list)})
}

func (s *ExtractionService) DeleteTask(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.tasks.Delete(req.GetValue())), nil
}

// toStruct converts any JSON-tagged value into a protobuf Struct using its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return st, nil
}

// NewGRPCServer builds a gRPC server carrying the extraction service, the health service and reflection.
// The returned health server reports SERVING until the caller flips it during shutdown.
func NewGRPCServer(svc ExtractionServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(extractionServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(gs)
	RegisterExtractionServer(gs, svc)
	return gs, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// RegisterExtractionServer attaches srv to a gRPC registrar.
func RegisterExtractionServer(r grpc.ServiceRegistrar, srv ExtractionServer) {
	r.RegisterService(&extractionServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(ExtractionServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExtractionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + extractionServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExtractionServer), ctx, req.(*Req))
			})
		},
	}
}

var extractionServiceDesc = grpc.ServiceDesc{
	ServiceName: extractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("SubmitPath", ExtractionServer.SubmitPath),
		unaryHandler("GetTask", ExtractionServer.GetTask),
		unaryHandler("ListTasks", ExtractionServer.ListTasks),
		unaryHandler("DeleteTask", ExtractionServer.DeleteTask),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "guideline/v1/extraction.proto",
}

// ExtractionClient calls ExtractionService over an existing connection.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+extractionServiceName+"/"+method, in, out, opts...)
}

func (c *ExtractionClient) SubmitPath(ctx context.Context, path string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "SubmitPath", wrapperspb.String(path), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) GetTask(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetTask", wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ListTasks(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "ListTasks", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) DeleteTask(ctx context.Context, id string, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "DeleteTask", wrapperspb.String(id), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
