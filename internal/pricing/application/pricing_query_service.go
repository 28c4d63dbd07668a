package application

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
	"github.com/wyfcoding/quantpricing/pkg/logger"
	"github.com/wyfcoding/quantpricing/pkg/metrics"
	"github.com/wyfcoding/quantpricing/pkg/random"
)

const (
	// MaxRandomQuantity 单次请求随机数上限
	MaxRandomQuantity = 1 << 24
	// MaxHistogramBins 直方图分箱上限
	MaxHistogramBins = 10000
)

// terminalQuantiles 路径终值的分位点
var terminalQuantiles = []float64{0.05, 0.5, 0.95}

// PricingQueryService 处理无副作用的查询：路径模拟与随机数序列
type PricingQueryService struct {
	engines *PricingEngines
	metrics metrics.MetricsCollector
}

// NewPricingQueryService 构造函数。
func NewPricingQueryService(engines *PricingEngines, collector metrics.MetricsCollector) *PricingQueryService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &PricingQueryService{
		engines: engines,
		metrics: collector,
	}
}

// GenerateScenarios 生成几何布朗运动路径，返回终值分布
func (s *PricingQueryService) GenerateScenarios(ctx context.Context, cmd ScenarioCommand) (*ScenarioResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sc := s.engines.Simulation
	if cmd.Scenarios != 0 {
		sc.NumScenarios = cmd.Scenarios
	}
	if cmd.Steps != 0 {
		sc.NumSteps = cmd.Steps
	}
	if cmd.Seed != nil {
		sc.Seed = cmd.Seed
	}
	if cmd.NormalMethod != "" {
		m, err := random.ParseMethod(cmd.NormalMethod)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		sc.Method = m
	}
	sc.Antithetic = cmd.Antithetic

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := checkScenarioCells(sc); err != nil {
		return nil, err
	}
	if cmd.Bins < 0 || cmd.Bins > MaxHistogramBins {
		return nil, fmt.Errorf("%w: bins must be in [0, %d], got %d", domain.ErrInvalidInput, MaxHistogramBins, cmd.Bins)
	}

	defer logger.LogDuration(ctx, "Scenarios generated", "scenarios", sc.NumScenarios, "steps", sc.NumSteps)()

	ss, err := s.engines.Simulator.Generate(cmd.MarketData, sc)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordScenarios(ss.NumScenarios())

	mean, err := ss.Matrix.ColumnAverage(-1, nil)
	if err != nil {
		return nil, err
	}
	spots := ss.TerminalSpots()
	result := &ScenarioResult{
		NumScenarios:  ss.NumScenarios(),
		NumSteps:      ss.NumSteps,
		Antithetic:    ss.Antithetic,
		TerminalSpots: spots,
		Mean:          mean,
		Quantiles:     make(map[float64]float64, len(terminalQuantiles)),
		Histogram:     domain.NewHistogram(spots, cmd.Bins),
	}
	if len(spots) > 1 {
		result.StdDev = stat.StdDev(spots, nil)
	}

	sorted := append([]float64(nil), spots...)
	sort.Float64s(sorted)
	for _, p := range terminalQuantiles {
		result.Quantiles[p] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}

	for i := 0; i < min(cmd.SamplePaths, result.NumScenarios); i++ {
		path, err := ss.Path(i)
		if err != nil {
			return nil, err
		}
		result.SamplePaths = append(result.SamplePaths, path)
	}
	return result, nil
}

// Uniform 生成 n 个 [0,1) 均匀随机数
func (s *PricingQueryService) Uniform(ctx context.Context, n int, seed *int64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n > MaxRandomQuantity {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", domain.ErrInvalidInput, n, MaxRandomQuantity)
	}
	out, err := s.engines.Random.Uniform(n, seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return out, nil
}

// Normal 生成 n 个标准正态随机数，method 为空时使用引擎配置的方法
func (s *PricingQueryService) Normal(ctx context.Context, n int, seed *int64, method string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n > MaxRandomQuantity {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", domain.ErrInvalidInput, n, MaxRandomQuantity)
	}
	m := s.engines.Simulation.Method
	if method != "" {
		var err error
		if m, err = random.ParseMethod(method); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}
	out, err := s.engines.Random.Normal(n, seed, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return out, nil
}
