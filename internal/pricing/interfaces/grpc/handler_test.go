package grpc_test

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wyfcoding/quantpricing/internal/pricing/application"
	pricinggrpc "github.com/wyfcoding/quantpricing/internal/pricing/interfaces/grpc"
	"github.com/wyfcoding/quantpricing/pkg/config"
	"github.com/wyfcoding/quantpricing/pkg/grpcclient"
)

func newClient(t *testing.T) (*pricinggrpc.PricingServiceClient, *grpc.ClientConn) {
	t.Helper()
	engines, err := application.NewPricingEngines(config.EngineConfig{
		LatticeSteps: 200,
		MCScenarios:  5000,
		MCSteps:      4,
		Shock:        0.001,
		Workers:      2,
		NormalMethod: "box_muller",
		IVTolerance:  1e-6,
		IVMaxIter:    100,
	})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	h := pricinggrpc.NewGRPCHandler(application.NewPricingService(engines, nil, nil))
	srv, _ := pricinggrpc.NewServer(h, pricinggrpc.ServerOptions{MaxConcurrentStreams: 16})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:         "passthrough:///bufnet",
		RequestTimeout: 10,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return pricinggrpc.NewPricingServiceClient(conn), conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func decimalField(t *testing.T, s *structpb.Struct, key string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s.GetFields()[key].GetStringValue(), 64)
	require.NoError(t, err)
	return v
}

var atm = map[string]any{"spot": 100.0, "time": 1.0, "rate": 0.05, "div": 0.0, "vol": 0.2}

func TestGRPCPrice(t *testing.T) {
	client, _ := newClient(t)

	out, err := client.Price(context.Background(), mustStruct(t, map[string]any{
		"underlying":  "AAPL",
		"kind":        "EURO_CALL",
		"strike":      100.0,
		"market_data": atm,
	}))
	require.NoError(t, err)
	assert.Equal(t, "BLACK_SCHOLES", out.GetFields()["method"].GetStringValue())
	assert.InDelta(t, 10.4506, decimalField(t, out, "price"), 1e-3)
}

func TestGRPCPriceControlVariate(t *testing.T) {
	client, _ := newClient(t)

	out, err := client.Price(context.Background(), mustStruct(t, map[string]any{
		"kind":            "EURO_CALL",
		"strike":          100.0,
		"method":          "MONTE_CARLO",
		"seed":            3.0,
		"control_variate": true,
		"market_data":     atm,
	}))
	require.NoError(t, err)
	assert.True(t, out.GetFields()["control_variate"].GetBoolValue())
	assert.InDelta(t, 10.4506, decimalField(t, out, "price"), 0.5)
}

func TestGRPCGreeks(t *testing.T) {
	client, _ := newClient(t)

	out, err := client.Greeks(context.Background(), mustStruct(t, map[string]any{
		"kind":        "EURO_CALL",
		"strike":      100.0,
		"market_data": atm,
	}))
	require.NoError(t, err)
	assert.True(t, out.GetFields()["analytic"].GetBoolValue())
	assert.InDelta(t, 0.6368, decimalField(t, out, "delta"), 1e-3)
}

func TestGRPCImpliedVol(t *testing.T) {
	client, _ := newClient(t)

	out, err := client.ImpliedVol(context.Background(), mustStruct(t, map[string]any{
		"kind":         "EURO_CALL",
		"strike":       100.0,
		"market_data":  atm,
		"target_price": 10.450583572185565,
	}))
	require.NoError(t, err)
	assert.True(t, out.GetFields()["converged"].GetBoolValue())
	assert.InDelta(t, 0.2, decimalField(t, out, "vol"), 1e-4)

	_, err = client.ImpliedVol(context.Background(), mustStruct(t, map[string]any{
		"kind":        "EURO_CALL",
		"strike":      100.0,
		"market_data": atm,
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCGenerateScenarios(t *testing.T) {
	client, _ := newClient(t)

	out, err := client.GenerateScenarios(context.Background(), mustStruct(t, map[string]any{
		"market_data": atm,
		"scenarios":   1000.0,
		"steps":       4.0,
		"seed":        7.0,
		"bins":        10.0,
	}))
	require.NoError(t, err)
	assert.EqualValues(t, 1000, out.GetFields()["num_scenarios"].GetNumberValue())
	assert.InDelta(t, 105.127, decimalField(t, out, "mean"), 2.0)
}

func TestGRPCBatchPrice(t *testing.T) {
	client, _ := newClient(t)

	out, err := client.BatchPrice(context.Background(), mustStruct(t, map[string]any{
		"batch_id": "batch-1",
		"contracts": []any{
			map[string]any{"kind": "EURO_CALL", "strike": 100.0, "market_data": atm},
			map[string]any{"kind": "AMERICAN_PUT", "strike": 100.0, "market_data": atm},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, "batch-1", out.GetFields()["batch_id"].GetStringValue())
	assert.EqualValues(t, 1, out.GetFields()["success_count"].GetNumberValue())
	assert.EqualValues(t, 1, out.GetFields()["failure_count"].GetNumberValue())

	_, err = client.BatchPrice(context.Background(), mustStruct(t, map[string]any{"contracts": []any{}}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	oversized := make([]any, application.MaxBatchContracts+1)
	for i := range oversized {
		oversized[i] = map[string]any{"kind": "EURO_CALL", "strike": 100.0, "market_data": atm}
	}
	_, err = client.BatchPrice(context.Background(), mustStruct(t, map[string]any{"contracts": oversized}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCErrorCodes(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	_, err := client.Price(ctx, mustStruct(t, map[string]any{
		"kind":        "EURO_CALL",
		"strike":      -1.0,
		"market_data": atm,
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Price(ctx, mustStruct(t, map[string]any{
		"kind":        "BERMUDAN_CALL",
		"strike":      100.0,
		"market_data": atm,
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Price(ctx, mustStruct(t, map[string]any{
		"kind":        "EURO_PUT",
		"strike":      100.0,
		"method":      "FFT",
		"market_data": atm,
	}))
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	_, err = client.Price(ctx, mustStruct(t, map[string]any{
		"kind":        "AMERICAN_PUT",
		"strike":      100.0,
		"method":      "BLACK_SCHOLES",
		"market_data": atm,
	}))
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	_, err = client.Price(ctx, mustStruct(t, map[string]any{
		"kind":          "EURO_PUT",
		"strike":        100.0,
		"method":        "TRINOMIAL",
		"lattice_steps": 1.0,
		"market_data":   map[string]any{"spot": 100.0, "time": 1.0, "rate": 0.9, "div": 0.0, "vol": 0.01},
	}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.Price(ctx, mustStruct(t, map[string]any{
		"kind":        "EURO_CALL",
		"strike":      100.0,
		"method":      "MONTE_CARLO",
		"scenarios":   4611686018427387904.0,
		"steps":       3.0,
		"market_data": atm,
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Price(ctx, mustStruct(t, map[string]any{
		"kind":   "EURO_CALL",
		"strike": "not-a-number",
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	_, conn := newClient(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: pricinggrpc.ServiceName,
	})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, codes.Canceled, pricinggrpc.CodeFor(context.Canceled))
	assert.Equal(t, codes.DeadlineExceeded, pricinggrpc.CodeFor(context.DeadlineExceeded))
	assert.Equal(t, codes.Internal, pricinggrpc.CodeFor(assert.AnError))
}
