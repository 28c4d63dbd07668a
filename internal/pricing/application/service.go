package application

import (
	"fmt"
	"time"

	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
	"github.com/wyfcoding/quantpricing/pkg/config"
	"github.com/wyfcoding/quantpricing/pkg/random"
)

// secondsPerYear 到期日换算为剩余期限（年）
const secondsPerYear = 365 * 24 * 3600

const (
	// MaxScenarioCells 单次模拟矩阵元素上限
	MaxScenarioCells = 1 << 25
	// MaxLatticeSteps 三叉树步数上限
	MaxLatticeSteps = 2000
	// MaxBatchContracts 单批次合约上限
	MaxBatchContracts = 1000
)

// PricingEngines 由引擎配置构造的数值组件，无可变状态，可并发共享
type PricingEngines struct {
	Random      *random.Engine
	Simulator   *domain.PathSimulator
	Lattice     domain.TrinomialPricer
	Closed      domain.BlackScholesPricer
	Sensitivity domain.SensitivityEngine
	Simulation  domain.SimulationConfig
	IV          domain.IVOptions
}

// NewPricingEngines 根据配置创建数值组件
func NewPricingEngines(cfg config.EngineConfig) (*PricingEngines, error) {
	method, err := random.ParseMethod(cfg.NormalMethod)
	if err != nil {
		return nil, err
	}
	sens, err := domain.NewSensitivityEngine(cfg.Shock)
	if err != nil {
		return nil, err
	}

	var seed *int64
	if cfg.Seed != 0 {
		seed = random.Seed(cfg.Seed)
	}

	rng := random.New(random.WithWorkers(cfg.Workers))
	return &PricingEngines{
		Random:      rng,
		Simulator:   domain.NewPathSimulator(rng),
		Lattice:     domain.NewTrinomialPricer(cfg.LatticeSteps),
		Sensitivity: sens,
		Simulation: domain.SimulationConfig{
			NumScenarios:   cfg.MCScenarios,
			NumSteps:       cfg.MCSteps,
			Seed:           seed,
			Method:         method,
			Antithetic:     cfg.Antithetic,
			ControlVariate: cfg.ControlVariate,
		},
		IV: domain.IVOptions{
			Tolerance: cfg.IVTolerance,
			MaxIter:   cfg.IVMaxIter,
		},
	}, nil
}

// simulationFor 合并命令中的蒙特卡洛参数
func (e *PricingEngines) simulationFor(cmd PriceOptionCommand) domain.SimulationConfig {
	sc := e.Simulation
	if cmd.Scenarios > 0 {
		sc.NumScenarios = cmd.Scenarios
	}
	if cmd.Steps > 0 {
		sc.NumSteps = cmd.Steps
	}
	if cmd.Seed != nil {
		sc.Seed = cmd.Seed
	}
	if cmd.Antithetic != nil {
		sc.Antithetic = *cmd.Antithetic
	}
	if cmd.ControlVariate != nil {
		sc.ControlVariate = *cmd.ControlVariate
	}
	return sc
}

// PricerFor 按方法选择定价器。fixSeed 为 true 时蒙特卡洛使用固定种子，
// 使多次冲击重定价共享同一组随机数
func (e *PricingEngines) PricerFor(method domain.PricingMethod, cmd PriceOptionCommand, fixSeed bool) (domain.Pricer, error) {
	switch method {
	case domain.MethodBlackScholes:
		return e.Closed, nil
	case domain.MethodTrinomial:
		if cmd.LatticeSteps > MaxLatticeSteps {
			return nil, fmt.Errorf("%w: lattice steps %d exceeds %d", domain.ErrInvalidInput, cmd.LatticeSteps, MaxLatticeSteps)
		}
		if cmd.LatticeSteps > 0 {
			return domain.NewTrinomialPricer(cmd.LatticeSteps), nil
		}
		return e.Lattice, nil
	case domain.MethodMonteCarlo:
		sc := e.simulationFor(cmd)
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		if err := checkScenarioCells(sc); err != nil {
			return nil, err
		}
		if fixSeed && sc.Seed == nil {
			sc.Seed = random.Seed(time.Now().UnixNano())
		}
		return domain.NewMonteCarloPricer(e.Simulator, sc), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMethod, method)
	}
}

// checkScenarioCells 校验路径矩阵规模，用除法比较避免乘法溢出
func checkScenarioCells(sc domain.SimulationConfig) error {
	if sc.NumSteps >= MaxScenarioCells || sc.NumScenarios > MaxScenarioCells/(sc.NumSteps+1) {
		return fmt.Errorf("%w: %d x %d scenario matrix exceeds %d cells", domain.ErrInvalidInput, sc.NumScenarios, sc.NumSteps, MaxScenarioCells)
	}
	return nil
}

// resolveContract 解析命令中的期权与定价方法，并补全剩余期限
func resolveContract(cmd PriceOptionCommand, now time.Time) (domain.OptionContract, domain.PricingMethod, domain.MarketData, error) {
	md := cmd.MarketData

	kind, err := domain.ParseOptionKind(cmd.OptionKind)
	if err != nil {
		return domain.OptionContract{}, "", md, err
	}
	method := domain.MethodBlackScholes
	if cmd.Method != "" {
		if method, err = domain.ParsePricingMethod(cmd.Method); err != nil {
			return domain.OptionContract{}, "", md, err
		}
	}

	var expiry time.Time
	if cmd.ExpiryDate > 0 {
		expiry = time.UnixMilli(cmd.ExpiryDate)
		if md.Time == 0 {
			md.Time = expiry.Sub(now).Seconds() / secondsPerYear
		}
	} else if md.Time > 0 {
		expiry = now.Add(time.Duration(md.Time * secondsPerYear * float64(time.Second)))
	}

	opt, err := domain.NewOption(kind, cmd.Underlying, cmd.Strike, expiry)
	if err != nil {
		return domain.OptionContract{}, "", md, err
	}
	return opt, method, md, nil
}
