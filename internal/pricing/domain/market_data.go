package domain

import (
	"fmt"
	"math"
)

// MarketData 定价所需的市场数据，值类型，冲击时复制而不修改原值
type MarketData struct {
	Spot float64 `json:"spot"` // 标的现价
	Time float64 `json:"time"` // 剩余期限（年）
	Rate float64 `json:"rate"` // 无风险利率
	Div  float64 `json:"div"`  // 连续股息率
	Vol  float64 `json:"vol"`  // 波动率
}

func (md MarketData) WithSpot(v float64) MarketData { md.Spot = v; return md }
func (md MarketData) WithTime(v float64) MarketData { md.Time = v; return md }
func (md MarketData) WithRate(v float64) MarketData { md.Rate = v; return md }
func (md MarketData) WithDiv(v float64) MarketData  { md.Div = v; return md }
func (md MarketData) WithVol(v float64) MarketData  { md.Vol = v; return md }

// Validate 校验字段有限，且 Spot、Time、Vol 为正
func (md MarketData) Validate() error {
	for name, v := range map[string]float64{
		"spot": md.Spot, "time": md.Time, "rate": md.Rate, "div": md.Div, "vol": md.Vol,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidInput, name)
		}
	}
	if md.Spot <= 0 {
		return fmt.Errorf("%w: spot must be positive, got %g", ErrInvalidInput, md.Spot)
	}
	if md.Time <= 0 {
		return fmt.Errorf("%w: time to expiry must be positive, got %g", ErrInvalidInput, md.Time)
	}
	if md.Vol <= 0 {
		return fmt.Errorf("%w: vol must be positive, got %g", ErrInvalidInput, md.Vol)
	}
	return nil
}
