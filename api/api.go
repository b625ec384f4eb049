package api

import (
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// The daemon exposes no domain rpc; orders arrive over the bus. Health is
// registered so deployment probes and service discovery see liveness.
func Register(server grpc.ServiceRegistrar) {
	grpc_health_v1.RegisterHealthServer(server, health.NewServer())
}

func RegisterGateway(mux *runtime.ServeMux, endpoint string, opts []grpc.DialOption) error {
	return nil
}
