package api

import (
	"context"
	"strings"

	"gardenplots/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName    = "gardenplots.availability.v1.AvailabilityService"
	methodGetGarden            = "/" + availabilityServiceName + "/GetGarden"
	methodListAvailableGardens = "/" + availabilityServiceName + "/ListAvailableGardens"
)

// GardenReader is the read side used by the availability RPC.
type GardenReader interface {
	Availability(ctx context.Context, id string) (*models.Availability, error)
	ListAvailable(ctx context.Context) ([]*models.Garden, error)
}

// AvailabilityServer exposes plot availability to map and notification
// consumers. Messages are google.protobuf.Struct:
//
//	GetGarden({"garden_id": "..."}) -> availability
//	ListAvailableGardens({}) -> {"gardens": [availability, ...]}
type AvailabilityServer interface {
	GetGarden(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAvailableGardens(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type AvailabilityService struct {
	gardens GardenReader
}

func NewAvailabilityService(gardens GardenReader) *AvailabilityService {
	return &AvailabilityService{gardens: gardens}
}

func (s *AvailabilityService) GetGarden(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetFields()["garden_id"].GetStringValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "garden_id is required")
	}
	av, err := s.gardens.Availability(ctx, id)
	if err != nil {
		return nil, grpcStatus(err)
	}
	return structpb.NewStruct(availabilityFields(av))
}

func (s *AvailabilityService) ListAvailableGardens(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	gardens, err := s.gardens.ListAvailable(ctx)
	if err != nil {
		return nil, grpcStatus(err)
	}
	out := make([]interface{}, 0, len(gardens))
	for _, g := range gardens {
		out = append(out, availabilityFields(&models.Availability{
			GardenID:       g.ID,
			Name:           g.Name,
			TotalPlots:     g.TotalPlots,
			AvailablePlots: g.AvailablePlots,
		}))
	}
	return structpb.NewStruct(map[string]interface{}{"gardens": out})
}

func availabilityFields(av *models.Availability) map[string]interface{} {
	return map[string]interface{}{
		"garden_id":        av.GardenID,
		"name":             av.Name,
		"total_plots":      av.TotalPlots,
		"available_plots":  av.AvailablePlots,
		"has_availability": av.AvailablePlots > 0,
	}
}

func RegisterAvailabilityServiceServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetGarden", Handler: unaryHandler(methodGetGarden, AvailabilityServer.GetGarden)},
		{MethodName: "ListAvailableGardens", Handler: unaryHandler(methodListAvailableGardens, AvailabilityServer.ListAvailableGardens)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gardenplots/availability/v1/availability.proto",
}

type structMethod func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AvailabilityClient is the typed client for AvailabilityService.
type AvailabilityClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityClient(cc grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{cc: cc}
}

func (c *AvailabilityClient) GetGarden(ctx context.Context, gardenID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"garden_id": gardenID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetGarden, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) ListAvailableGardens(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListAvailableGardens, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
