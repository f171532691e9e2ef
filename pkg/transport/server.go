package transport

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
	"github.com/cuemby/meridian/pkg/replication"
)

const serviceName = "meridian.transport.Replication"

// Server is the grpc-reachable side of one node: it turns an incoming
// SendPrimary into a full replication.Coordinator.Execute call (this
// node is, by construction, the one the caller resolved as primary
// owner) and an incoming SendReplica into a direct
// Action.ApplyOnReplica against a locally acquired shard.
type Server struct {
	registry    *ActionRegistry
	coordinator *replication.Coordinator
	local       replication.LocalShards
}

// NewServer builds a Server over registry, coordinator (used for the
// primary path) and local (used for the replica path).
func NewServer(registry *ActionRegistry, coordinator *replication.Coordinator, local replication.LocalShards) *Server {
	return &Server{registry: registry, coordinator: coordinator, local: local}
}

// Register attaches this Server's hand-built ServiceDesc to s, the same
// call site shape RegisterXxxServer(s, srv) would have if this package
// were generated by protoc-gen-go-grpc.
func (srv *Server) Register(s *grpc.Server) {
	s.RegisterService(&serviceDesc, srv)
}

func (srv *Server) handleSendPrimary(ctx context.Context, in *writeRequestWire) (*responseWire, error) {
	entry, err := srv.registry.lookup(in.ActionName)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	body, err := decodeValue(entry.newBody, in.Body)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	req := replication.WriteRequest{
		TargetIndex:       in.TargetIndex,
		RoutingKey:        in.RoutingKey,
		Body:              body,
		Consistency:       cluster.ConsistencyLevel(in.Consistency),
		Timeout:           time.Duration(in.TimeoutMillis) * time.Millisecond,
		CanHaveDuplicates: in.CanHaveDuplicates,
	}

	resp, err := srv.coordinator.Execute(ctx, entry.action, req)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	payload, err := jsonCodec{}.Marshal(resp.Payload)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &responseWire{
		Payload:    payload,
		Total:      resp.Shards.Total,
		Successful: resp.Shards.Successful,
		Failed:     resp.Shards.Failed,
		Skipped:    resp.Shards.Skipped,
	}, nil
}

func (srv *Server) handleSendReplica(ctx context.Context, in *replicaRequestWire) (*replicaAckWire, error) {
	entry, err := srv.registry.lookup(in.ActionName)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	payload, err := decodeValue(entry.newReplicaPayload, in.Payload)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	shardID := cluster.ShardID{Index: in.ShardIndex, Shard: in.ShardNum}
	shard, ref, err := srv.local.Acquire(shardID)
	if err != nil {
		return &replicaAckWire{Kind: int(coordfail.KindShardNotAvailableYet), Reason: err.Error()}, nil
	}
	defer ref.Release()

	replicaReq := replication.ReplicaRequest{
		ShardID:           shardID,
		Payload:           payload,
		CanHaveDuplicates: in.CanHaveDuplicates,
	}
	if err := entry.action.ApplyOnReplica(ctx, shard, replicaReq); err != nil {
		if cf, ok := err.(*coordfail.Error); ok {
			return &replicaAckWire{Kind: int(cf.Kind), Reason: cf.Reason}, nil
		}
		return &replicaAckWire{Kind: int(coordfail.KindUnexpectedReplica), Reason: err.Error()}, nil
	}
	return &replicaAckWire{Ok: true}, nil
}

func sendPrimaryHandler(srvIface any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(writeRequestWire)
	if err := dec(in); err != nil {
		return nil, err
	}
	srv := srvIface.(*Server)
	if interceptor == nil {
		return srv.handleSendPrimary(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SendPrimary"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.handleSendPrimary(ctx, req.(*writeRequestWire))
	}
	return interceptor(ctx, in, info, handler)
}

func sendReplicaHandler(srvIface any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(replicaRequestWire)
	if err := dec(in); err != nil {
		return nil, err
	}
	srv := srvIface.(*Server)
	if interceptor == nil {
		return srv.handleSendReplica(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SendReplica"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.handleSendReplica(ctx, req.(*replicaRequestWire))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendPrimary", Handler: sendPrimaryHandler},
		{MethodName: "SendReplica", Handler: sendReplicaHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meridian/transport.proto",
}
