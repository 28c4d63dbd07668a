// 包  gRPC 处理器实现
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wyfcoding/quantpricing/internal/pricing/application"
	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
)

// GRPCHandler gRPC 处理器
// 负责处理与定价相关的 gRPC 请求
type GRPCHandler struct {
	app *application.PricingService // 定价应用服务
}

// NewGRPCHandler 创建 gRPC 处理器实例
// app: 注入的定价应用服务
func NewGRPCHandler(app *application.PricingService) *GRPCHandler {
	return &GRPCHandler{app: app}
}

type priceRequest struct {
	Underlying     string            `json:"underlying"`
	Kind           string            `json:"kind"`
	Strike         float64           `json:"strike"`
	ExpiryDate     *time.Time        `json:"expiry_date"`
	Method         string            `json:"method"`
	MarketData     domain.MarketData `json:"market_data"`
	Scenarios      int               `json:"scenarios"`
	Steps          int               `json:"steps"`
	Seed           *int64            `json:"seed"`
	Antithetic     *bool             `json:"antithetic"`
	ControlVariate *bool             `json:"control_variate"`
	LatticeSteps   int               `json:"lattice_steps"`
}

func (r priceRequest) toCommand() application.PriceOptionCommand {
	cmd := application.PriceOptionCommand{
		Underlying:     r.Underlying,
		OptionKind:     r.Kind,
		Strike:         r.Strike,
		Method:         r.Method,
		MarketData:     r.MarketData,
		Scenarios:      r.Scenarios,
		Steps:          r.Steps,
		Seed:           r.Seed,
		Antithetic:     r.Antithetic,
		ControlVariate: r.ControlVariate,
		LatticeSteps:   r.LatticeSteps,
	}
	if r.ExpiryDate != nil {
		cmd.ExpiryDate = r.ExpiryDate.UnixMilli()
	}
	return cmd
}

type impliedVolRequest struct {
	priceRequest
	TargetPrice *float64 `json:"target_price"`
	Tolerance   float64  `json:"tolerance"`
	MaxIter     int      `json:"max_iter"`
}

type scenarioRequest struct {
	MarketData  domain.MarketData `json:"market_data"`
	Scenarios   int               `json:"scenarios"`
	Steps       int               `json:"steps"`
	Seed        *int64            `json:"seed"`
	Method      string            `json:"method"`
	Antithetic  bool              `json:"antithetic"`
	Bins        int               `json:"bins"`
	SamplePaths int               `json:"sample_paths"`
}

type batchRequest struct {
	BatchID   string         `json:"batch_id"`
	Contracts []priceRequest `json:"contracts"`
}

// Price 期权定价
func (h *GRPCHandler) Price(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req priceRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	result, err := h.app.Price(ctx, req.toCommand())
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(application.ToPricingResultDTO(result))
}

// Greeks 希腊字母
func (h *GRPCHandler) Greeks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req priceRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	result, err := h.app.Greeks(ctx, req.toCommand())
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(application.ToGreeksDTO(result))
}

// ImpliedVol 隐含波动率，未收敛返回 FailedPrecondition
func (h *GRPCHandler) ImpliedVol(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req impliedVolRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.TargetPrice == nil {
		return nil, status.Error(codes.InvalidArgument, "target_price is required")
	}
	result, err := h.app.ImpliedVol(ctx, application.ImpliedVolCommand{
		PriceOptionCommand: req.toCommand(),
		TargetPrice:        *req.TargetPrice,
		Tolerance:          req.Tolerance,
		MaxIter:            req.MaxIter,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(application.ToImpliedVolDTO(result))
}

// GenerateScenarios 路径模拟
func (h *GRPCHandler) GenerateScenarios(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req scenarioRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	result, err := h.app.GenerateScenarios(ctx, application.ScenarioCommand{
		MarketData:   req.MarketData,
		Scenarios:    req.Scenarios,
		Steps:        req.Steps,
		Seed:         req.Seed,
		NormalMethod: req.Method,
		Antithetic:   req.Antithetic,
		Bins:         req.Bins,
		SamplePaths:  req.SamplePaths,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(application.ToScenarioDTO(result))
}

// BatchPrice 批量定价，单个合约失败记录在结果中
func (h *GRPCHandler) BatchPrice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req batchRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if len(req.Contracts) == 0 || len(req.Contracts) > application.MaxBatchContracts {
		return nil, status.Errorf(codes.InvalidArgument, "contracts must contain 1 to %d items", application.MaxBatchContracts)
	}
	cmds := make([]application.PriceOptionCommand, len(req.Contracts))
	for i, c := range req.Contracts {
		cmds[i] = c.toCommand()
	}
	result, err := h.app.BatchPrice(ctx, application.BatchPriceOptionsCommand{BatchID: req.BatchID, Contracts: cmds})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(application.ToBatchPricingDTO(result))
}

// decode Struct -> JSON -> 请求结构
func decode(in *structpb.Struct, out any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// encode 响应 DTO -> JSON -> Struct
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// CodeFor 领域错误到 gRPC 状态码的映射
func CodeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrUnsupportedVariant),
		errors.Is(err, domain.ErrUnsupportedMethod):
		return codes.Unimplemented
	case errors.Is(err, domain.ErrNotConverged),
		errors.Is(err, domain.ErrArbitrageProbabilities):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	return status.Error(CodeFor(err), err.Error())
}
