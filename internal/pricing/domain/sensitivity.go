package domain

import (
	"fmt"
	"math"
)

const (
	// DefaultShock 默认相对冲击幅度
	DefaultShock = 0.001
	// MaxShock 相对冲击上限
	MaxShock = 0.05
	// TradingDaysPerYear Theta 以一个交易日为步长
	TradingDaysPerYear = 252

	// DefaultIVTolerance 隐含波动率价格残差阈值
	DefaultIVTolerance = 1e-4
	// DefaultIVMaxIter 隐含波动率最大迭代次数
	DefaultIVMaxIter = 1000
	// DefaultIVGuess 市场数据未给出波动率时的初始猜测
	DefaultIVGuess = 0.2

	minVol = 1e-6
	maxVol = 10.0
)

// SensitivityEngine 基于有限差分的通用希腊字母与隐含波动率求解器，
// 把定价函数当作黑盒，适用于任意定价方法
type SensitivityEngine struct {
	Shock float64
}

// NewSensitivityEngine shock 必须在 (0, 0.05] 内
func NewSensitivityEngine(shock float64) (SensitivityEngine, error) {
	if !(shock > 0 && shock <= MaxShock) {
		return SensitivityEngine{}, fmt.Errorf("%w: shock must be in (0, %g], got %g", ErrInvalidInput, MaxShock, shock)
	}
	return SensitivityEngine{Shock: shock}, nil
}

func (e SensitivityEngine) shock() float64 {
	if e.Shock <= 0 {
		return DefaultShock
	}
	return e.Shock
}

// Delta 对标的价格的中心差分
func (e SensitivityEngine) Delta(f PriceFunc, md MarketData) (float64, error) {
	h := e.shock()
	return centralDiff(f, md.Spot*(1+h), md.Spot*(1-h), md.WithSpot)
}

// Vega 对波动率的中心差分
func (e SensitivityEngine) Vega(f PriceFunc, md MarketData) (float64, error) {
	h := e.shock()
	return centralDiff(f, md.Vol*(1+h), md.Vol*(1-h), md.WithVol)
}

// Rho 对利率的中心差分；利率为 0 时相对冲击退化，改用绝对冲击
func (e SensitivityEngine) Rho(f PriceFunc, md MarketData) (float64, error) {
	h := e.shock()
	if md.Rate == 0 {
		return centralDiff(f, h, -h, md.WithRate)
	}
	return centralDiff(f, md.Rate*(1+h), md.Rate*(1-h), md.WithRate)
}

// Gamma 对标的价格的二阶差分
func (e SensitivityEngine) Gamma(f PriceFunc, md MarketData) (float64, error) {
	base, err := f(md)
	if err != nil {
		return 0, err
	}
	return e.gamma(f, md, base)
}

func (e SensitivityEngine) gamma(f PriceFunc, md MarketData, base float64) (float64, error) {
	h := e.shock()
	s := md.Spot
	up, dn := s*(1+h), s*(1-h)
	pUp, err := f(md.WithSpot(up))
	if err != nil {
		return 0, err
	}
	pDn, err := f(md.WithSpot(dn))
	if err != nil {
		return 0, err
	}
	return ((pUp-base)/(up-s) - (base-pDn)/(s-dn)) / (0.5 * (up - dn)), nil
}

// Theta 对剩余期限的前向差分 (f(T-dt)-f(T))/-dt，dt 为一个交易日。
// 表示每增加一年剩余期限的价值变化，多头香草期权为正
func (e SensitivityEngine) Theta(f PriceFunc, md MarketData) (float64, error) {
	base, err := f(md)
	if err != nil {
		return 0, err
	}
	return theta(f, md, base)
}

func theta(f PriceFunc, md MarketData, base float64) (float64, error) {
	dt := 1.0 / TradingDaysPerYear
	if md.Time <= dt {
		return 0, fmt.Errorf("%w: time to expiry %g is within one trading day", ErrInvalidInput, md.Time)
	}
	prev, err := f(md.WithTime(md.Time - dt))
	if err != nil {
		return 0, err
	}
	return (base - prev) / dt, nil
}

// Greeks 一次计算全部五个希腊字母，基准价格只计算一次
func (e SensitivityEngine) Greeks(f PriceFunc, md MarketData) (Greeks, error) {
	base, err := f(md)
	if err != nil {
		return Greeks{}, err
	}

	var g Greeks
	if g.Delta, err = e.Delta(f, md); err != nil {
		return Greeks{}, err
	}
	if g.Gamma, err = e.gamma(f, md, base); err != nil {
		return Greeks{}, err
	}
	if g.Theta, err = theta(f, md, base); err != nil {
		return Greeks{}, err
	}
	if g.Vega, err = e.Vega(f, md); err != nil {
		return Greeks{}, err
	}
	if g.Rho, err = e.Rho(f, md); err != nil {
		return Greeks{}, err
	}
	return g, nil
}

// IVOptions 牛顿迭代参数，零值使用默认
type IVOptions struct {
	Tolerance float64
	MaxIter   int
}

func (o IVOptions) withDefaults() IVOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultIVTolerance
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultIVMaxIter
	}
	return o
}

// IVResult 隐含波动率结果。未收敛时 Vol 为最后一次迭代值
type IVResult struct {
	Vol        float64 `json:"vol"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
}

// ImpliedVol 以有限差分 Vega 作为导数，用牛顿法求使 f 等于 target 的波动率。
// 达到最大迭代次数或斜率为零时同时返回最后估计值与 ErrNotConverged。
func (e SensitivityEngine) ImpliedVol(f PriceFunc, md MarketData, target float64, opts IVOptions) (IVResult, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		return IVResult{}, fmt.Errorf("%w: target price %g", ErrInvalidInput, target)
	}
	opts = opts.withDefaults()

	vol := md.Vol
	if vol <= 0 {
		vol = DefaultIVGuess
	}

	for i := 1; i <= opts.MaxIter; i++ {
		cur := md.WithVol(vol)
		price, err := f(cur)
		if err != nil {
			return IVResult{Vol: vol, Iterations: i}, err
		}
		diff := price - target
		if math.Abs(diff) < opts.Tolerance {
			return IVResult{Vol: vol, Converged: true, Iterations: i}, nil
		}

		slope, err := e.Vega(f, cur)
		if err != nil {
			return IVResult{Vol: vol, Iterations: i}, err
		}
		if slope == 0 || math.IsNaN(slope) {
			return IVResult{Vol: vol, Iterations: i},
				fmt.Errorf("%w: zero vega at vol=%g", ErrNotConverged, vol)
		}
		vol = math.Min(math.Max(vol-diff/slope, minVol), maxVol)
	}

	return IVResult{Vol: vol, Iterations: opts.MaxIter},
		fmt.Errorf("%w: residual above %g after %d iterations", ErrNotConverged, opts.Tolerance, opts.MaxIter)
}

// centralDiff (f(up)-f(dn))/(up-dn)，with 生成冲击后的市场数据
func centralDiff(f PriceFunc, up, dn float64, with func(float64) MarketData) (float64, error) {
	pUp, err := f(with(up))
	if err != nil {
		return 0, err
	}
	pDn, err := f(with(dn))
	if err != nil {
		return 0, err
	}
	return (pUp - pDn) / (up - dn), nil
}
