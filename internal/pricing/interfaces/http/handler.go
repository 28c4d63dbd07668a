package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/quantpricing/internal/pricing/application"
	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
	"github.com/wyfcoding/quantpricing/pkg/logger"
	"github.com/wyfcoding/quantpricing/pkg/response"
)

// PricingHandler HTTP 处理器
// 负责处理与定价相关的 HTTP 请求
type PricingHandler struct {
	app *application.PricingService
}

// NewPricingHandler 创建 HTTP 处理器实例
func NewPricingHandler(app *application.PricingService) *PricingHandler {
	return &PricingHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *PricingHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/pricing")
	{
		api.POST("/price", h.Price)
		api.POST("/greeks", h.Greeks)
		api.POST("/implied-vol", h.ImpliedVol)
		api.POST("/scenarios", h.GenerateScenarios)
		api.POST("/batch", h.BatchPrice)
	}

	rnd := router.Group("/api/v1/random")
	{
		rnd.GET("/uniform", h.Uniform)
		rnd.GET("/normal", h.Normal)
	}
}

// PriceRequest 定价请求
type PriceRequest struct {
	Underlying string            `json:"underlying"`
	Kind       string            `json:"kind" binding:"required"`
	Strike     float64           `json:"strike" binding:"required,gt=0"`
	ExpiryDate *time.Time        `json:"expiry_date"`
	Method     string            `json:"method"`
	MarketData domain.MarketData `json:"market_data"`

	Scenarios      int    `json:"scenarios" binding:"gte=0"`
	Steps          int    `json:"steps" binding:"gte=0"`
	Seed           *int64 `json:"seed"`
	Antithetic     *bool  `json:"antithetic"`
	ControlVariate *bool  `json:"control_variate"`
	LatticeSteps   int    `json:"lattice_steps" binding:"gte=0"`
}

func (r PriceRequest) toCommand() application.PriceOptionCommand {
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

// ImpliedVolRequest 隐含波动率请求，market_data.vol 作为初始猜测
type ImpliedVolRequest struct {
	PriceRequest
	TargetPrice *float64 `json:"target_price" binding:"required"`
	Tolerance   float64  `json:"tolerance" binding:"gte=0"`
	MaxIter     int      `json:"max_iter" binding:"gte=0"`
}

// ScenarioRequest 路径模拟请求
type ScenarioRequest struct {
	MarketData  domain.MarketData `json:"market_data"`
	Scenarios   int               `json:"scenarios" binding:"gte=0"`
	Steps       int               `json:"steps" binding:"gte=0"`
	Seed        *int64            `json:"seed"`
	Method      string            `json:"method"`
	Antithetic  bool              `json:"antithetic"`
	Bins        int               `json:"bins" binding:"gte=0"`
	SamplePaths int               `json:"sample_paths" binding:"gte=0,lte=100"`
}

// BatchRequest 批量定价请求
type BatchRequest struct {
	BatchID   string         `json:"batch_id"`
	Contracts []PriceRequest `json:"contracts" binding:"required,min=1,max=1000,dive"`
}

// Price 期权定价
func (h *PricingHandler) Price(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := h.app.Price(c.Request.Context(), req.toCommand())
	if err != nil {
		writeError(c, "Failed to price option", err)
		return
	}
	response.Success(c, application.ToPricingResultDTO(result))
}

// Greeks 希腊字母
func (h *PricingHandler) Greeks(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := h.app.Greeks(c.Request.Context(), req.toCommand())
	if err != nil {
		writeError(c, "Failed to calculate Greeks", err)
		return
	}
	response.Success(c, application.ToGreeksDTO(result))
}

// ImpliedVol 隐含波动率，未收敛时返回 422 与最后一次估计
func (h *PricingHandler) ImpliedVol(c *gin.Context) {
	var req ImpliedVolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := h.app.ImpliedVol(c.Request.Context(), application.ImpliedVolCommand{
		PriceOptionCommand: req.toCommand(),
		TargetPrice:        *req.TargetPrice,
		Tolerance:          req.Tolerance,
		MaxIter:            req.MaxIter,
	})
	if errors.Is(err, domain.ErrNotConverged) && result != nil {
		response.ErrorWithData(c, http.StatusUnprocessableEntity, "implied vol did not converge", err.Error(), application.ToImpliedVolDTO(result))
		return
	}
	if err != nil {
		writeError(c, "Failed to solve implied vol", err)
		return
	}
	response.Success(c, application.ToImpliedVolDTO(result))
}

// GenerateScenarios 路径模拟
func (h *PricingHandler) GenerateScenarios(c *gin.Context) {
	var req ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := h.app.GenerateScenarios(c.Request.Context(), application.ScenarioCommand{
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
		writeError(c, "Failed to generate scenarios", err)
		return
	}
	response.Success(c, application.ToScenarioDTO(result))
}

// BatchPrice 批量定价
func (h *PricingHandler) BatchPrice(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	cmd := application.BatchPriceOptionsCommand{
		BatchID:   req.BatchID,
		Contracts: make([]application.PriceOptionCommand, len(req.Contracts)),
	}
	for i, contract := range req.Contracts {
		cmd.Contracts[i] = contract.toCommand()
	}

	result, err := h.app.BatchPrice(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, "Failed to price batch", err)
		return
	}
	response.Success(c, application.ToBatchPricingDTO(result))
}

// Uniform GET /api/v1/random/uniform?n=100&seed=42
func (h *PricingHandler) Uniform(c *gin.Context) {
	n, seed, ok := randomParams(c)
	if !ok {
		return
	}
	out, err := h.app.Uniform(c.Request.Context(), n, seed)
	if err != nil {
		writeError(c, "Failed to generate uniforms", err)
		return
	}
	response.Success(c, gin.H{"n": n, "values": out})
}

// Normal GET /api/v1/random/normal?n=100&seed=42&method=polar
func (h *PricingHandler) Normal(c *gin.Context) {
	n, seed, ok := randomParams(c)
	if !ok {
		return
	}
	out, err := h.app.Normal(c.Request.Context(), n, seed, c.Query("method"))
	if err != nil {
		writeError(c, "Failed to generate normals", err)
		return
	}
	response.Success(c, gin.H{"n": n, "values": out})
}

func randomParams(c *gin.Context) (int, *int64, bool) {
	n, err := strconv.Atoi(c.Query("n"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", "n must be an integer")
		return 0, nil, false
	}
	var seed *int64
	if s := c.Query("seed"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", "seed must be an integer")
			return 0, nil, false
		}
		seed = &v
	}
	return n, seed, true
}

// StatusFor 领域错误到 HTTP 状态码的映射
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnsupportedVariant),
		errors.Is(err, domain.ErrUnsupportedMethod):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotConverged),
		errors.Is(err, domain.ErrArbitrageProbabilities):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), msg, "error", err)
		response.ErrorWithStatus(c, status, "internal error", err.Error())
		return
	}
	logger.Warn(c.Request.Context(), msg, "error", err)
	response.ErrorWithStatus(c, status, http.StatusText(status), err.Error())
}
