package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"catalog-analytics-service/internal/catalog"
	"catalog-analytics-service/internal/domain"
)

// InventoryServiceName is the fully qualified gRPC service name.
const InventoryServiceName = "catalog.v1.InventoryService"

// InventoryServiceServer exposes the inventory queries over gRPC. Requests and
// responses are google.protobuf.Struct messages with the same field names as
// the HTTP API.
type InventoryServiceServer interface {
	AdvancedSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LowStock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalytics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BulkUpdateStock(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(InventoryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(InventoryServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + InventoryServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("AdvancedSearch", InventoryServiceServer.AdvancedSearch),
		unaryMethod("LowStock", InventoryServiceServer.LowStock),
		unaryMethod("GetAnalytics", InventoryServiceServer.GetAnalytics),
		unaryMethod("BulkUpdateStock", InventoryServiceServer.BulkUpdateStock),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/inventory.proto",
}

// RegisterInventoryServiceServer registers srv with s.
func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

// GRPCHandler implements InventoryServiceServer on top of the catalog service.
type GRPCHandler struct {
	svc CatalogService
	log *logrus.Logger
}

var _ InventoryServiceServer = (*GRPCHandler)(nil)

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(svc CatalogService, logger *logrus.Logger) *GRPCHandler {
	return &GRPCHandler{svc: svc, log: logger}
}

// --- Helper: Error Mapping ---

func (h *GRPCHandler) statusError(method string, err error) error {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case catalog.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	}
	h.log.WithError(err).WithField("method", method).Error("gRPC request failed")
	return status.Errorf(codes.Internal, "%s failed", method)
}

// queryValues flattens the scalar fields of a request so the HTTP query
// parsers can read them.
func queryValues(in *structpb.Struct) url.Values {
	q := url.Values{}
	for name, v := range in.GetFields() {
		switch kind := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			q.Set(name, kind.StringValue)
		case *structpb.Value_NumberValue:
			q.Set(name, strconv.FormatFloat(kind.NumberValue, 'f', -1, 64))
		case *structpb.Value_BoolValue:
			q.Set(name, strconv.FormatBool(kind.BoolValue))
		}
	}
	return q
}

// toStruct re-encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

func (h *GRPCHandler) reply(method string, v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, h.statusError(method, fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}

type productList struct {
	Products []domain.Product `json:"products"`
}

// --- Inventory gRPC Methods Implementation ---

func (h *GRPCHandler) AdvancedSearch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q := queryValues(req)
	h.log.WithField("query", q.Encode()).Debug("gRPC AdvancedSearch")

	criteria, err := catalog.ParseSearchCriteria(q)
	if err != nil {
		return nil, h.statusError("AdvancedSearch", err)
	}
	paging, err := catalog.ParsePaging(q)
	if err != nil {
		return nil, h.statusError("AdvancedSearch", err)
	}
	page, err := h.svc.AdvancedSearch(ctx, criteria, paging)
	if err != nil {
		return nil, h.statusError("AdvancedSearch", err)
	}
	return h.reply("AdvancedSearch", page)
}

func (h *GRPCHandler) LowStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	threshold, err := catalog.ParseThreshold(queryValues(req), "threshold")
	if err != nil {
		return nil, h.statusError("LowStock", err)
	}
	products, err := h.svc.LowStock(ctx, threshold)
	if err != nil {
		return nil, h.statusError("LowStock", err)
	}
	return h.reply("LowStock", productList{Products: nonNil(products)})
}

func (h *GRPCHandler) GetAnalytics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snap, err := h.svc.Analytics(ctx)
	if err != nil {
		return nil, h.statusError("GetAnalytics", err)
	}
	return h.reply("GetAnalytics", snap)
}

// BulkUpdateStock expects {"updates": [{"id": 1, "stock": 10}, ...]}.
func (h *GRPCHandler) BulkUpdateStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var updates []catalog.StockUpdate
	if v, ok := req.GetFields()["updates"]; ok {
		raw, err := json.Marshal(v.AsInterface())
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid updates: %v", err)
		}
		if err := json.Unmarshal(raw, &updates); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid updates: %v", err)
		}
	}
	h.log.WithField("items", len(updates)).Debug("gRPC BulkUpdateStock")

	res, err := h.svc.BulkUpdateStock(ctx, updates)
	if err != nil {
		return nil, h.statusError("BulkUpdateStock", err)
	}
	return h.reply("BulkUpdateStock", res)
}
