// 包 定价服务的领域模型：期权合约、市场数据与三种定价方法（闭式解、三叉树、蒙特卡洛）
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// OptionKind 期权类型
type OptionKind string

const (
	EuroCall     OptionKind = "EURO_CALL"     // 欧式看涨
	EuroPut      OptionKind = "EURO_PUT"      // 欧式看跌
	AmericanCall OptionKind = "AMERICAN_CALL" // 美式看涨
	AmericanPut  OptionKind = "AMERICAN_PUT"  // 美式看跌
	DigiCall     OptionKind = "DIGITAL_CALL"  // 现金或无价值看涨
	DigiPut      OptionKind = "DIGITAL_PUT"   // 现金或无价值看跌
)

// OptionStyle 行权风格
type OptionStyle string

const (
	StyleEuropean OptionStyle = "EUROPEAN"
	StyleAmerican OptionStyle = "AMERICAN"
	StyleDigital  OptionStyle = "DIGITAL"
)

type kindInfo struct {
	style  OptionStyle
	isCall bool
}

var kinds = map[OptionKind]kindInfo{
	EuroCall:     {StyleEuropean, true},
	EuroPut:      {StyleEuropean, false},
	AmericanCall: {StyleAmerican, true},
	AmericanPut:  {StyleAmerican, false},
	DigiCall:     {StyleDigital, true},
	DigiPut:      {StyleDigital, false},
}

// ParseOptionKind 解析期权类型，大小写不敏感，"-" 与 "_" 等价；DIGI_CALL 作为 DIGITAL_CALL 的别名
func ParseOptionKind(s string) (OptionKind, error) {
	k := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	k = strings.Replace(k, "DIGI_", "DIGITAL_", 1)
	if _, ok := kinds[OptionKind(k)]; !ok {
		return "", fmt.Errorf("%w: unknown option kind %q", ErrInvalidInput, s)
	}
	return OptionKind(k), nil
}

// OptionContract 期权合约，构造后不可变
type OptionContract struct {
	Underlying string     // 标的资产代码
	Strike     float64    // 行权价
	Expiry     time.Time  // 到期日
	Kind       OptionKind // 期权类型

	payoff func(spot float64) float64
}

// NewOption 创建期权合约，构造时即确定收益函数
func NewOption(kind OptionKind, underlying string, strike float64, expiry time.Time) (OptionContract, error) {
	info, ok := kinds[kind]
	if !ok {
		return OptionContract{}, fmt.Errorf("%w: unknown option kind %q", ErrInvalidInput, kind)
	}
	if strike <= 0 || math.IsNaN(strike) || math.IsInf(strike, 0) {
		return OptionContract{}, fmt.Errorf("%w: strike must be positive, got %g", ErrInvalidInput, strike)
	}
	return OptionContract{
		Underlying: underlying,
		Strike:     strike,
		Expiry:     expiry,
		Kind:       kind,
		payoff:     payoffFor(info, strike),
	}, nil
}

func payoffFor(info kindInfo, k float64) func(float64) float64 {
	switch {
	case info.style == StyleDigital && info.isCall:
		return func(s float64) float64 {
			if s > k {
				return 1
			}
			return 0
		}
	case info.style == StyleDigital:
		return func(s float64) float64 {
			if s < k {
				return 1
			}
			return 0
		}
	case info.isCall:
		return func(s float64) float64 { return math.Max(s-k, 0) }
	default:
		return func(s float64) float64 { return math.Max(k-s, 0) }
	}
}

// Payoff 到期（或行权时）收益
func (o OptionContract) Payoff(spot float64) float64 {
	if o.payoff == nil {
		// 未经 NewOption 构造的字面量
		return payoffFor(kinds[o.Kind], o.Strike)(spot)
	}
	return o.payoff(spot)
}

// IsCall 是否看涨
func (o OptionContract) IsCall() bool {
	return kinds[o.Kind].isCall
}

// Style 行权风格
func (o OptionContract) Style() OptionStyle {
	return kinds[o.Kind].style
}

// Greeks 希腊字母
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}
