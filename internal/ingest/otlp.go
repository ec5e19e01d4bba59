package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/brainz-lab/recall/internal/logparse"
	"github.com/brainz-lab/recall/internal/model"
	"github.com/google/uuid"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Resource attributes lifted into record columns.
var resourceColumns = map[string]string{
	"service.name":                model.ColumnService,
	"host.name":                   model.ColumnHost,
	"deployment.environment":      model.ColumnEnvironment,
	"deployment.environment.name": model.ColumnEnvironment,
}

// Log record attributes lifted into record columns.
var recordColumns = map[string]string{
	"commit":      model.ColumnCommit,
	"branch":      model.ColumnBranch,
	"request_id":  model.ColumnRequestID,
	"session_id":  model.ColumnSessionID,
	"environment": model.ColumnEnvironment,
	"service":     model.ColumnService,
	"host":        model.ColumnHost,
}

// RecordsFromOTLP flattens an OTLP export into records. Attributes without a
// column go into data, with record attributes overriding resource ones.
func RecordsFromOTLP(req *collogspb.ExportLogsServiceRequest, now time.Time) []*model.LogRecord {
	var out []*model.LogRecord
	for _, rl := range req.GetResourceLogs() {
		base := &model.LogRecord{}
		baseData := map[string]any{}
		applyAttributes(base, baseData, rl.GetResource().GetAttributes(), resourceColumns)

		for _, sl := range rl.GetScopeLogs() {
			scope := sl.GetScope().GetName()
			for _, lr := range sl.GetLogRecords() {
				out = append(out, otlpRecord(lr, base, baseData, scope, now))
			}
		}
	}
	return out
}

func otlpRecord(lr *logspb.LogRecord, base *model.LogRecord, baseData map[string]any, scope string, now time.Time) *model.LogRecord {
	rec := *base
	rec.ID = uuid.New().String()
	rec.Data = make(map[string]any, len(baseData))
	for k, v := range baseData {
		rec.Data[k] = v
	}
	applyAttributes(&rec, rec.Data, lr.GetAttributes(), recordColumns)

	switch {
	case lr.GetTimeUnixNano() > 0:
		rec.Timestamp = time.Unix(0, int64(lr.GetTimeUnixNano())).UTC()
	case lr.GetObservedTimeUnixNano() > 0:
		rec.Timestamp = time.Unix(0, int64(lr.GetObservedTimeUnixNano())).UTC()
	default:
		rec.Timestamp = now.UTC()
	}

	if text := lr.GetSeverityText(); text != "" {
		rec.Level = logparse.NormalizeLevel(text)
	} else {
		rec.Level = logparse.SeverityNumberToLevel(int32(lr.GetSeverityNumber()))
	}

	if body := anyValue(lr.GetBody()); body != nil {
		rec.Message = stringifyJSONValue(body)
	}
	if id := lr.GetTraceId(); len(id) > 0 {
		rec.Data["trace_id"] = hex.EncodeToString(id)
	}
	if id := lr.GetSpanId(); len(id) > 0 {
		rec.Data["span_id"] = hex.EncodeToString(id)
	}
	if scope != "" {
		rec.Data["otel.scope.name"] = scope
	}
	return &rec
}

func applyAttributes(rec *model.LogRecord, data map[string]any, attrs []*commonpb.KeyValue, columns map[string]string) {
	for _, kv := range attrs {
		v := anyValue(kv.GetValue())
		if v == nil {
			continue
		}
		if col, ok := columns[kv.GetKey()]; ok {
			if s := stringifyJSONValue(v); s != "" {
				setColumn(rec, col, s)
				continue
			}
		}
		data[kv.GetKey()] = v
	}
}

// anyValue converts an OTLP AnyValue into the JSON-shaped value stored in
// data: kvlists become objects and arrays become lists.
func anyValue(v *commonpb.AnyValue) any {
	if v == nil {
		return nil
	}
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_IntValue:
		return float64(val.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(val.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		items := make([]any, 0, len(val.ArrayValue.GetValues()))
		for _, item := range val.ArrayValue.GetValues() {
			items = append(items, anyValue(item))
		}
		return items
	case *commonpb.AnyValue_KvlistValue:
		obj := make(map[string]any, len(val.KvlistValue.GetValues()))
		for _, kv := range val.KvlistValue.GetValues() {
			obj[kv.GetKey()] = anyValue(kv.GetValue())
		}
		return obj
	}
	return nil
}

// DecodeOTLPRequest reads an OTLP/HTTP logs body, protobuf or JSON
// depending on contentType.
func DecodeOTLPRequest(body []byte, contentType string) (*collogspb.ExportLogsServiceRequest, error) {
	req := &collogspb.ExportLogsServiceRequest{}
	var err error
	if strings.HasPrefix(contentType, "application/x-protobuf") || strings.HasPrefix(contentType, "application/protobuf") {
		err = proto.Unmarshal(body, req)
	} else {
		err = protojson.Unmarshal(body, req)
	}
	if err != nil {
		return nil, fmt.Errorf("decode otlp logs: %w", err)
	}
	return req, nil
}

// Receiver implements the OTLP LogsService and forwards records to a sink.
type Receiver struct {
	collogspb.UnimplementedLogsServiceServer

	sink RecordSink
	now  func() time.Time

	// OnReceive, when set, is called with the number of records per export.
	OnReceive func(n int)
}

// NewReceiver creates a receiver that adds every decoded record to sink.
func NewReceiver(sink RecordSink) *Receiver {
	return &Receiver{sink: sink, now: time.Now}
}

// Export handles one OTLP export call.
func (r *Receiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	if r.sink == nil {
		return nil, status.Error(codes.Unavailable, "ingest sink not configured")
	}
	records := RecordsFromOTLP(req, r.now())
	for _, rec := range records {
		r.sink.Add(rec)
	}
	if r.OnReceive != nil {
		r.OnReceive(len(records))
	}
	return &collogspb.ExportLogsServiceResponse{}, nil
}

// OTLPServer serves the OTLP gRPC logs endpoint.
type OTLPServer struct {
	addr     string
	server   *grpc.Server
	mu       sync.Mutex
	listener net.Listener
}

// NewOTLPServer registers receiver on a new gRPC server bound to addr.
func NewOTLPServer(addr string, receiver *Receiver, opts ...grpc.ServerOption) *OTLPServer {
	s := grpc.NewServer(opts...)
	collogspb.RegisterLogsServiceServer(s, receiver)
	return &OTLPServer{addr: addr, server: s}
}

// Start listens and serves in the background.
func (s *OTLPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("otlp listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(ln); err != nil && err != grpc.ErrServerStopped {
			log.Printf("ingest: otlp server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *OTLPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight calls, giving up when ctx ends.
func (s *OTLPServer) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
}
