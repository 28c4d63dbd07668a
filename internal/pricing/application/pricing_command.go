package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
	"github.com/wyfcoding/quantpricing/pkg/logger"
	"github.com/wyfcoding/quantpricing/pkg/metrics"
	"github.com/wyfcoding/quantpricing/pkg/parallel"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// PricingCommandService 处理定价、希腊字母、隐含波动率与批量定价，
// 每次计算完成后发布领域事件（publisher 为 nil 时不发布）
type PricingCommandService struct {
	engines   *PricingEngines
	publisher domain.EventPublisher
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewPricingCommandService 创建新的 PricingCommandService 实例
func NewPricingCommandService(engines *PricingEngines, publisher domain.EventPublisher, collector metrics.MetricsCollector) *PricingCommandService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &PricingCommandService{
		engines:   engines,
		publisher: publisher,
		metrics:   collector,
		now:       time.Now,
	}
}

// PriceOption 期权定价
func (c *PricingCommandService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	opt, method, md, err := resolveContract(cmd, c.now())
	if err != nil {
		return nil, err
	}

	result, err := c.price(opt, method, md, cmd)
	c.metrics.RecordPricing(string(method), string(opt.Kind), outcome(err), time.Since(start).Seconds())
	if err != nil {
		logger.Error(ctx, "Option pricing failed",
			"underlying", opt.Underlying,
			"kind", opt.Kind,
			"method", method,
			"error", err,
		)
		return nil, err
	}
	logger.Debug(ctx, "Option priced",
		"underlying", opt.Underlying,
		"kind", opt.Kind,
		"method", method,
		"price", result.Price,
		"duration", time.Since(start),
	)

	if c.publisher != nil {
		event := domain.OptionPricedEvent{
			Underlying: result.Underlying,
			Kind:       result.Kind,
			Strike:     result.Strike,
			ExpiryDate: cmd.ExpiryDate,
			Method:     result.Method,
			Price:      result.Price,
			StdErr:     result.StdErr,
			MarketData: result.MarketData,
			OccurredOn: c.now(),
		}
		if err := c.publisher.PublishOptionPriced(ctx, event); err != nil {
			logger.Warn(ctx, "Failed to publish OptionPriced event", "underlying", result.Underlying, "error", err)
		}
	}
	return result, nil
}

func (c *PricingCommandService) price(opt domain.OptionContract, method domain.PricingMethod, md domain.MarketData, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	if err := md.Validate(); err != nil {
		return nil, err
	}
	pricer, err := c.engines.PricerFor(method, cmd, false)
	if err != nil {
		return nil, err
	}

	result := &domain.PricingResult{
		Underlying:   opt.Underlying,
		Kind:         opt.Kind,
		Strike:       opt.Strike,
		Method:       method,
		MarketData:   md,
		CalculatedAt: c.now(),
	}

	if mc, ok := pricer.(*domain.MonteCarloPricer); ok {
		est, err := mc.Estimate(opt, md)
		if err != nil {
			return nil, err
		}
		c.metrics.RecordScenarios(est.NumScenarios)
		result.Price, result.StdErr = est.Price, est.StdErr
		result.ControlVariate = mc.Config.ControlVariate
		return result, nil
	}

	if result.Price, err = pricer.Price(opt, md); err != nil {
		return nil, err
	}
	return result, nil
}

// CalculateGreeks 计算希腊字母。欧式期权在 BLACK_SCHOLES 方法下使用解析公式，
// 其余组合使用有限差分冲击
func (c *PricingCommandService) CalculateGreeks(ctx context.Context, cmd PriceOptionCommand) (*GreeksResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer logger.LogDuration(ctx, "Greeks calculated", "underlying", cmd.Underlying, "method", cmd.Method)()

	opt, method, md, err := resolveContract(cmd, c.now())
	if err != nil {
		return nil, err
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}

	result := &GreeksResult{
		Underlying:   opt.Underlying,
		Kind:         opt.Kind,
		Strike:       opt.Strike,
		Method:       method,
		MarketData:   md,
		CalculatedAt: c.now(),
	}

	if method == domain.MethodBlackScholes && opt.Style() == domain.StyleEuropean {
		result.Greeks, err = c.engines.Closed.Greeks(opt, md)
		result.Analytic = true
	} else {
		var pricer domain.Pricer
		if pricer, err = c.engines.PricerFor(method, cmd, true); err == nil {
			result.Greeks, err = c.engines.Sensitivity.Greeks(domain.PriceFuncFor(pricer, opt), md)
		}
	}
	if err != nil {
		logger.Error(ctx, "Greeks calculation failed", "underlying", opt.Underlying, "kind", opt.Kind, "method", method, "error", err)
		return nil, err
	}

	if c.publisher != nil {
		event := domain.GreeksCalculatedEvent{
			Underlying: result.Underlying,
			Kind:       result.Kind,
			Strike:     result.Strike,
			Method:     result.Method,
			Analytic:   result.Analytic,
			Greeks:     result.Greeks,
			MarketData: result.MarketData,
			OccurredOn: c.now(),
		}
		if err := c.publisher.PublishGreeksCalculated(ctx, event); err != nil {
			logger.Warn(ctx, "Failed to publish GreeksCalculated event", "underlying", result.Underlying, "error", err)
		}
	}
	return result, nil
}

// SolveImpliedVol 求解隐含波动率。未收敛时同时返回最后一次估计与 domain.ErrNotConverged
func (c *PricingCommandService) SolveImpliedVol(ctx context.Context, cmd ImpliedVolCommand) (*ImpliedVolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer logger.LogDuration(ctx, "Implied vol solved", "underlying", cmd.Underlying, "method", cmd.Method)()

	opt, method, md, err := resolveContract(cmd.PriceOptionCommand, c.now())
	if err != nil {
		return nil, err
	}
	guess := md.Vol
	if guess <= 0 {
		guess = domain.DefaultIVGuess
	}
	if err := md.WithVol(guess).Validate(); err != nil {
		return nil, err
	}

	pricer, err := c.engines.PricerFor(method, cmd.PriceOptionCommand, true)
	if err != nil {
		return nil, err
	}
	opts := c.engines.IV
	if cmd.Tolerance > 0 {
		opts.Tolerance = cmd.Tolerance
	}
	if cmd.MaxIter > 0 {
		opts.MaxIter = cmd.MaxIter
	}

	iv, err := c.engines.Sensitivity.ImpliedVol(domain.PriceFuncFor(pricer, opt), md, cmd.TargetPrice, opts)
	notConverged := errors.Is(err, domain.ErrNotConverged)
	if err != nil && !notConverged {
		logger.Error(ctx, "Implied vol solve failed", "underlying", opt.Underlying, "kind", opt.Kind, "error", err)
		return nil, err
	}

	result := &ImpliedVolResult{
		Underlying:  opt.Underlying,
		Kind:        opt.Kind,
		Strike:      opt.Strike,
		Method:      method,
		TargetPrice: cmd.TargetPrice,
		IVResult:    iv,
	}
	if notConverged {
		c.metrics.RecordIVNotConverged()
		logger.Warn(ctx, "Implied vol did not converge",
			"underlying", opt.Underlying,
			"target", cmd.TargetPrice,
			"last_vol", iv.Vol,
			"iterations", iv.Iterations,
		)
	}

	if c.publisher != nil {
		event := domain.ImpliedVolSolvedEvent{
			Underlying:  result.Underlying,
			Kind:        result.Kind,
			Strike:      result.Strike,
			Method:      result.Method,
			TargetPrice: result.TargetPrice,
			Vol:         iv.Vol,
			Converged:   iv.Converged,
			Iterations:  iv.Iterations,
			OccurredOn:  c.now(),
		}
		if perr := c.publisher.PublishImpliedVolSolved(ctx, event); perr != nil {
			logger.Warn(ctx, "Failed to publish ImpliedVolSolved event", "underlying", result.Underlying, "error", perr)
		}
	}
	return result, err
}

// BatchPriceOptions 并行批量定价，单个合约失败不影响其他合约
func (c *PricingCommandService) BatchPriceOptions(ctx context.Context, cmd BatchPriceOptionsCommand) (*BatchPricingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cmd.BatchID == "" {
		cmd.BatchID = uuid.New().String()
	}

	n := len(cmd.Contracts)
	if n > MaxBatchContracts {
		return nil, fmt.Errorf("%w: batch of %d contracts exceeds %d", domain.ErrInvalidInput, n, MaxBatchContracts)
	}
	results := make([]*domain.PricingResult, n)
	errs := make([]error, n)

	var mu sync.Mutex
	totalTime := 0.0

	_ = parallel.Tasks(n, c.engines.Random.Workers(), func(i int) error {
		start := time.Now()
		results[i], errs[i] = c.PriceOption(ctx, cmd.Contracts[i])
		elapsed := time.Since(start).Seconds()

		mu.Lock()
		totalTime += elapsed
		mu.Unlock()
		return nil
	})

	out := &BatchPricingResult{BatchID: cmd.BatchID, Results: results}
	for i, err := range errs {
		if err != nil {
			out.FailureCount++
			out.Errors = append(out.Errors, BatchItemError{Index: i, Err: err})
			continue
		}
		out.SuccessCount++
	}
	if n > 0 {
		out.AverageTime = totalTime / float64(n)
	}

	logger.Info(ctx, "Batch pricing completed",
		"batch_id", out.BatchID,
		"total", n,
		"success", out.SuccessCount,
		"failure", out.FailureCount,
	)

	if c.publisher != nil {
		event := domain.BatchPricingCompletedEvent{
			BatchID:        out.BatchID,
			Underlyings:    extractUnderlyings(cmd.Contracts),
			TotalContracts: n,
			SuccessCount:   out.SuccessCount,
			FailureCount:   out.FailureCount,
			AverageTime:    out.AverageTime,
			OccurredOn:     c.now(),
		}
		if err := c.publisher.PublishBatchPricingCompleted(ctx, event); err != nil {
			logger.Warn(ctx, "Failed to publish BatchPricingCompleted event", "batch_id", out.BatchID, "error", err)
		}
	}
	return out, nil
}

// extractUnderlyings 按首次出现顺序去重
func extractUnderlyings(contracts []PriceOptionCommand) []string {
	underlyings := make([]string, 0, len(contracts))
	seen := make(map[string]bool)

	for _, contract := range contracts {
		if !seen[contract.Underlying] {
			underlyings = append(underlyings, contract.Underlying)
			seen[contract.Underlying] = true
		}
	}

	return underlyings
}

func outcome(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}
