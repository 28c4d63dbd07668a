package domain

import (
	"fmt"
	"strings"
	"time"
)

// PricingMethod 定价方法
type PricingMethod string

const (
	MethodBlackScholes PricingMethod = "BLACK_SCHOLES"
	MethodTrinomial    PricingMethod = "TRINOMIAL"
	MethodMonteCarlo   PricingMethod = "MONTE_CARLO"
)

// ParsePricingMethod 解析定价方法，大小写不敏感
func ParsePricingMethod(s string) (PricingMethod, error) {
	m := PricingMethod(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	switch m {
	case MethodBlackScholes, MethodTrinomial, MethodMonteCarlo:
		return m, nil
	case "BS":
		return MethodBlackScholes, nil
	case "LATTICE":
		return MethodTrinomial, nil
	case "MC":
		return MethodMonteCarlo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
}

// Pricer 定价器
type Pricer interface {
	Price(opt OptionContract, md MarketData) (float64, error)
	Method() PricingMethod
}

// PriceFunc 把期权固定下来，只留市场数据作为参数，供敏感度计算使用
type PriceFunc func(md MarketData) (float64, error)

// PriceFuncFor 将定价器与期权绑定为 PriceFunc
func PriceFuncFor(p Pricer, opt OptionContract) PriceFunc {
	return func(md MarketData) (float64, error) {
		return p.Price(opt, md)
	}
}

// PricingResult 定价结果实体
type PricingResult struct {
	Underlying string        `json:"underlying"`
	Kind       OptionKind    `json:"kind"`
	Strike     float64       `json:"strike"`
	Method     PricingMethod `json:"method"`
	Price      float64       `json:"price"`
	StdErr     float64       `json:"std_err,omitempty"`
	// 蒙特卡洛估计是否使用了 Delta 对冲控制变量
	ControlVariate bool       `json:"control_variate,omitempty"`
	MarketData     MarketData `json:"market_data"`
	CalculatedAt   time.Time  `json:"calculated_at"`
}
