package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholesPricer 带连续股息率的 Black-Scholes 闭式解，支持欧式与数字期权
type BlackScholesPricer struct{}

// Method 定价方法
func (BlackScholesPricer) Method() PricingMethod { return MethodBlackScholes }

// Price 计算期权价格；美式期权没有闭式解，返回 ErrUnsupportedVariant
func (BlackScholesPricer) Price(opt OptionContract, md MarketData) (float64, error) {
	if err := md.Validate(); err != nil {
		return 0, err
	}
	d1, d2 := bsD1D2(opt.Strike, md)
	dfR := math.Exp(-md.Rate * md.Time)
	dfQ := math.Exp(-md.Div * md.Time)

	switch opt.Style() {
	case StyleEuropean:
		if opt.IsCall() {
			return md.Spot*dfQ*normCdf(d1) - opt.Strike*dfR*normCdf(d2), nil
		}
		return opt.Strike*dfR*normCdf(-d2) - md.Spot*dfQ*normCdf(-d1), nil
	case StyleDigital:
		if opt.IsCall() {
			return dfR * normCdf(d2), nil
		}
		return dfR * normCdf(-d2), nil
	default:
		return 0, fmt.Errorf("%w: black-scholes cannot price %s", ErrUnsupportedVariant, opt.Kind)
	}
}

// Greeks 欧式期权的解析希腊字母。Theta 取对剩余期限的偏导 ∂V/∂T，
// 即日历时间 Theta 取反，与 SensitivityEngine 的差分 Theta 同号
func (BlackScholesPricer) Greeks(opt OptionContract, md MarketData) (Greeks, error) {
	if opt.Style() != StyleEuropean {
		return Greeks{}, fmt.Errorf("%w: analytic greeks require a european option, got %s", ErrUnsupportedVariant, opt.Kind)
	}
	if err := md.Validate(); err != nil {
		return Greeks{}, err
	}

	s, k, t, r, q, v := md.Spot, opt.Strike, md.Time, md.Rate, md.Div, md.Vol
	d1, d2 := bsD1D2(k, md)
	dfR := math.Exp(-r * t)
	dfQ := math.Exp(-q * t)
	sqrtT := math.Sqrt(t)
	pdf := normPdf(d1)

	g := Greeks{
		Gamma: pdf * dfQ / (s * v * sqrtT),
		Vega:  s * sqrtT * pdf * dfQ,
	}
	decay := -s * pdf * v * dfQ / (2 * sqrtT)
	if opt.IsCall() {
		g.Delta = dfQ * normCdf(d1)
		g.Theta = -(decay + q*s*dfQ*normCdf(d1) - r*k*dfR*normCdf(d2))
		g.Rho = k * t * dfR * normCdf(d2)
	} else {
		g.Delta = dfQ * (normCdf(d1) - 1)
		g.Theta = -(decay - q*s*dfQ*normCdf(-d1) + r*k*dfR*normCdf(-d2))
		g.Rho = -k * t * dfR * normCdf(-d2)
	}
	return g, nil
}

// hedgeDelta 标的价格 s、剩余期限 tau 处的 Black-Scholes Delta，数字期权取数字 Delta
func hedgeDelta(opt OptionContract, s, tau float64, md MarketData) float64 {
	at := md
	at.Spot, at.Time = s, tau
	d1, d2 := bsD1D2(opt.Strike, at)

	if opt.Style() == StyleDigital {
		d := math.Exp(-md.Rate*tau) * normPdf(d2) / (s * md.Vol * math.Sqrt(tau))
		if opt.IsCall() {
			return d
		}
		return -d
	}
	dfQ := math.Exp(-md.Div * tau)
	if opt.IsCall() {
		return dfQ * normCdf(d1)
	}
	return dfQ * (normCdf(d1) - 1)
}

func bsD1D2(k float64, md MarketData) (float64, float64) {
	volSqrtT := md.Vol * math.Sqrt(md.Time)
	d1 := (math.Log(md.Spot/k) + (md.Rate-md.Div+0.5*md.Vol*md.Vol)*md.Time) / volSqrtT
	return d1, d1 - volSqrtT
}

// normCdf 标准正态分布累积分布函数
func normCdf(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPdf 标准正态分布概率密度函数
func normPdf(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
