package domain

import (
	"fmt"
	"math"
)

// DefaultLatticeSteps 三叉树默认步数
const DefaultLatticeSteps = 500

// probabilityTolerance 三个转移概率之和与 1 的允许偏差
const probabilityTolerance = 1e-9

// TrinomialPricer 可重组三叉树定价器，支持美式提前行权
type TrinomialPricer struct {
	NumSteps int
}

// NewTrinomialPricer steps<=0 时使用默认步数
func NewTrinomialPricer(steps int) TrinomialPricer {
	if steps <= 0 {
		steps = DefaultLatticeSteps
	}
	return TrinomialPricer{NumSteps: steps}
}

// Method 定价方法
func (TrinomialPricer) Method() PricingMethod { return MethodTrinomial }

// LatticeProbabilities 上、平、下三个转移概率
type LatticeProbabilities struct {
	Up   float64
	Flat float64
	Down float64
}

// NewLatticeProbabilities 由 (dt, r, div, vol) 计算转移概率并校验其无套利区间
func NewLatticeProbabilities(dt, r, div, vol float64) (LatticeProbabilities, error) {
	dx := vol * math.Sqrt(3*dt)
	nu := r - div - 0.5*vol*vol
	c := (vol*vol*dt + nu*nu*dt*dt) / (dx * dx)
	p := LatticeProbabilities{
		Up:   0.5 * (c + nu*dt/dx),
		Flat: 1 - c,
		Down: 0.5 * (c - nu*dt/dx),
	}
	return p, p.validate()
}

func (p LatticeProbabilities) validate() error {
	for _, v := range []float64{p.Up, p.Flat, p.Down} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: up=%g flat=%g down=%g", ErrArbitrageProbabilities, p.Up, p.Flat, p.Down)
		}
	}
	if math.Abs(p.Up+p.Flat+p.Down-1) > probabilityTolerance {
		return fmt.Errorf("%w: sum=%g", ErrArbitrageProbabilities, p.Up+p.Flat+p.Down)
	}
	return nil
}

// Price 逆向归纳求期权价格
func (t TrinomialPricer) Price(opt OptionContract, md MarketData) (float64, error) {
	n := t.NumSteps
	if n <= 0 {
		return 0, fmt.Errorf("%w: lattice steps must be positive, got %d", ErrInvalidInput, n)
	}
	if err := md.Validate(); err != nil {
		return 0, err
	}

	dt := md.Time / float64(n)
	prob, err := NewLatticeProbabilities(dt, md.Rate, md.Div, md.Vol)
	if err != nil {
		return 0, err
	}
	dx := md.Vol * math.Sqrt(3*dt)
	discount := math.Exp(-md.Rate * dt)

	american := opt.Style() == StyleAmerican
	var levels [][]float64
	if american {
		levels = spotLevels(md.Spot, dx, n)
	}

	values := spotVector(md.Spot, dx, n)
	for j := range values {
		values[j] = opt.Payoff(values[j])
	}

	// 原地收缩：每一步写 values[j-1]，只读取尚未覆盖的 j-1..j+1
	size := len(values)
	for i := 0; i < n; i++ {
		var spots []float64
		if american {
			spots = levels[n-1-i]
		}
		for j := 1; j < size-1; j++ {
			v := discount * (prob.Down*values[j-1] + prob.Flat*values[j] + prob.Up*values[j+1])
			if american {
				v = math.Max(v, opt.Payoff(spots[j-1]))
			}
			values[j-1] = v
		}
		size -= 2
	}
	return values[0], nil
}

// spotVector 到期时 2n+1 个节点的标的价格，下标 n 为当前价
func spotVector(s, dx float64, n int) []float64 {
	up, down := math.Exp(dx), math.Exp(-dx)
	res := make([]float64, 2*n+1)
	for j := range res {
		if j < n {
			res[j] = s * math.Pow(down, float64(n-j))
		} else {
			res[j] = s * math.Pow(up, float64(j-n))
		}
	}
	return res
}

// spotLevels 正向构造每一步的标的价格，第 i 层有 2i+1 个节点
func spotLevels(s, dx float64, n int) [][]float64 {
	res := make([][]float64, n+1)
	for i := 0; i <= n; i++ {
		res[i] = spotVector(s, dx, i)
	}
	return res
}
