package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/quantpricing/pkg/parallel"
	"github.com/wyfcoding/quantpricing/pkg/random"
	"github.com/wyfcoding/quantpricing/pkg/scenario"
)

const (
	// DefaultScenarios 默认模拟路径数
	DefaultScenarios = 10000
	// DefaultSimulationSteps 默认时间步数（一年交易日）
	DefaultSimulationSteps = 252
	// DefaultHistogramBins 终值分布默认分箱数
	DefaultHistogramBins = 50

	// antitheticVarianceFactor 对偶变量下方差缩减系数
	antitheticVarianceFactor = 0.75
)

// SimulationConfig 路径模拟参数。ControlVariate 为 true 时定价使用 Delta 对冲控制变量
type SimulationConfig struct {
	NumScenarios   int
	NumSteps       int
	Seed           *int64
	Method         random.Method
	Antithetic     bool
	ControlVariate bool
}

// Validate 校验路径数与步数
func (c SimulationConfig) Validate() error {
	if c.NumScenarios <= 0 {
		return fmt.Errorf("%w: scenarios must be positive, got %d", ErrInvalidInput, c.NumScenarios)
	}
	if c.NumSteps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidInput, c.NumSteps)
	}
	if c.NumSteps == math.MaxInt || c.NumScenarios > math.MaxInt/(c.NumSteps+1) {
		return fmt.Errorf("%w: %d x %d scenario matrix overflows", ErrInvalidInput, c.NumScenarios, c.NumSteps)
	}
	return nil
}

// ScenarioSet 一次模拟生成的全部路径，Generate 返回后只读
type ScenarioSet struct {
	Matrix         *scenario.Matrix
	MarketData     MarketData
	NumSteps       int
	Antithetic     bool
	ControlVariate bool
}

// NumScenarios 路径数
func (s *ScenarioSet) NumScenarios() int { return s.Matrix.Rows() }

// TerminalSpots 每条路径在到期时的标的价格
func (s *ScenarioSet) TerminalSpots() []float64 {
	// 最后一列总是存在
	spots, _ := s.Matrix.ColumnGet(-1)
	return spots
}

// Path 第 i 条路径（含初始价）
func (s *ScenarioSet) Path(i int) ([]float64, error) {
	return s.Matrix.Row(i)
}

// PathSimulator 几何布朗运动路径生成器
type PathSimulator struct {
	rng *random.Engine
}

// NewPathSimulator 创建路径生成器，rng 为 nil 时使用默认引擎
func NewPathSimulator(rng *random.Engine) *PathSimulator {
	if rng == nil {
		rng = random.New()
	}
	return &PathSimulator{rng: rng}
}

// Generate 生成 NumScenarios × (NumSteps+1) 的路径矩阵，第 0 列为 S0。
// 所有正态随机数在递推开始前一次性生成。
func (p *PathSimulator) Generate(md MarketData, cfg SimulationConfig) (*ScenarioSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}

	rows, cols := cfg.NumScenarios, cfg.NumSteps+1
	m, err := scenario.New(rows, cols, scenario.WithWorkers(p.rng.Workers()))
	if err != nil {
		return nil, err
	}

	// 普通模式下正态数直接写入矩阵，递推时 row[col] 即为该格的 Z；
	// 对偶模式下每对路径共享一组正态数，奇数行取相反数，存放在独立缓冲区中。
	var shocks []float64
	if cfg.Antithetic {
		shocks = make([]float64, (rows+1)/2*cols)
		if err := p.rng.FillNormal(shocks, cfg.Seed, cfg.Method); err != nil {
			return nil, err
		}
	} else if err := p.rng.FillNormal(m.Data(), cfg.Seed, cfg.Method); err != nil {
		return nil, err
	}

	if err := m.ColumnSet(0, func(int) float64 { return md.Spot }); err != nil {
		return nil, err
	}

	dt := md.Time / float64(cfg.NumSteps)
	drift := (md.Rate - md.Div - 0.5*md.Vol*md.Vol) * dt
	diffusion := md.Vol * math.Sqrt(dt)

	step := func(row []float64, col, flat int) float64 {
		z := row[col]
		if shocks != nil {
			r := flat / cols
			z = shocks[(r/2)*cols+col]
			if r%2 == 1 {
				z = -z
			}
		}
		return row[col-1] * math.Exp(drift+diffusion*z)
	}
	if err := m.CrossApply(step, 1); err != nil {
		return nil, err
	}

	return &ScenarioSet{
		Matrix:         m,
		MarketData:     md,
		NumSteps:       cfg.NumSteps,
		Antithetic:     cfg.Antithetic,
		ControlVariate: cfg.ControlVariate,
	}, nil
}

// Estimate 蒙特卡洛估计值
type Estimate struct {
	Price        float64 `json:"price"`
	StdErr       float64 `json:"std_err"`
	NumScenarios int     `json:"num_scenarios"`
}

// MonteCarloPricer 蒙特卡洛定价器，只支持路径无关的欧式与数字期权
type MonteCarloPricer struct {
	Simulator *PathSimulator
	Config    SimulationConfig
}

// NewMonteCarloPricer 创建蒙特卡洛定价器
func NewMonteCarloPricer(sim *PathSimulator, cfg SimulationConfig) *MonteCarloPricer {
	if sim == nil {
		sim = NewPathSimulator(nil)
	}
	return &MonteCarloPricer{Simulator: sim, Config: cfg}
}

// Method 定价方法
func (p *MonteCarloPricer) Method() PricingMethod { return MethodMonteCarlo }

// Price 折现后的平均收益
func (p *MonteCarloPricer) Price(opt OptionContract, md MarketData) (float64, error) {
	est, err := p.Estimate(opt, md)
	if err != nil {
		return 0, err
	}
	return est.Price, nil
}

// Estimate 模拟路径并给出价格与标准误
func (p *MonteCarloPricer) Estimate(opt OptionContract, md MarketData) (Estimate, error) {
	if err := checkMonteCarloVariant(opt); err != nil {
		return Estimate{}, err
	}
	ss, err := p.Simulator.Generate(md, p.Config)
	if err != nil {
		return Estimate{}, err
	}
	return PriceScenarios(opt, ss)
}

// PriceScenarios 在已生成的路径上定价。
// 开启控制变量时每条路径的收益减去离散 Delta 对冲组合的到期价值，后者期望为零
func PriceScenarios(opt OptionContract, ss *ScenarioSet) (Estimate, error) {
	if err := checkMonteCarloVariant(opt); err != nil {
		return Estimate{}, err
	}
	md := ss.MarketData
	discount := math.Exp(-md.Rate * md.Time)

	n, cols := ss.NumScenarios(), ss.Matrix.Cols()
	data := ss.Matrix.Data()
	pv := make([]float64, n)
	parallel.For(n, ss.Matrix.Workers(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			path := data[i*cols : (i+1)*cols]
			v := opt.Payoff(path[cols-1])
			if ss.ControlVariate {
				v -= hedgeValue(opt, md, path)
			}
			pv[i] = discount * v
		}
	})

	est := Estimate{Price: stat.Mean(pv, nil), NumScenarios: n}
	if n > 1 {
		variance := stat.Variance(pv, nil)
		if ss.Antithetic {
			variance *= antitheticVarianceFactor
		}
		est.StdErr = math.Sqrt(variance / float64(n))
	}
	return est, nil
}

// hedgeValue 沿一条路径逐步持有 Delta 份标的的对冲盈亏，按无风险利率滚动到到期日。
// 每一步的增量 S(j+1) - S(j)·e^{(r-q)dt} 在风险中性测度下条件期望为零
func hedgeValue(opt OptionContract, md MarketData, path []float64) float64 {
	steps := len(path) - 1
	dt := md.Time / float64(steps)
	growth := math.Exp((md.Rate - md.Div) * dt)

	var cv float64
	for j := 0; j < steps; j++ {
		tau := md.Time - float64(j)*dt
		delta := hedgeDelta(opt, path[j], tau, md)
		cv += delta * (path[j+1] - path[j]*growth) * math.Exp(md.Rate*(tau-dt))
	}
	return cv
}

func checkMonteCarloVariant(opt OptionContract) error {
	if opt.Style() == StyleAmerican {
		return fmt.Errorf("%w: monte carlo cannot price %s", ErrUnsupportedVariant, opt.Kind)
	}
	return nil
}

// Histogram 等宽分箱的样本分布，Edges 比 Counts 多一个元素
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
}

// NewHistogram 对样本做等宽分箱，bins<=0 时使用默认分箱数
func NewHistogram(samples []float64, bins int) Histogram {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	if len(samples) == 0 {
		return Histogram{Edges: []float64{}, Counts: []float64{}}
	}

	x := append([]float64(nil), samples...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	// 最大值落在最后一个箱内
	edges[bins] = math.Nextafter(hi, math.Inf(1))

	return Histogram{
		Edges:  edges,
		Counts: stat.Histogram(nil, edges, x, nil),
	}
}
