package domain

import "time"

const (
	OptionPricedEventType          = "OptionPriced"
	GreeksCalculatedEventType      = "GreeksCalculated"
	ImpliedVolSolvedEventType      = "ImpliedVolSolved"
	BatchPricingCompletedEventType = "BatchPricingCompleted"
)

// OptionPricedEvent 期权定价完成事件
type OptionPricedEvent struct {
	Underlying string        `json:"underlying"`
	Kind       OptionKind    `json:"kind"`
	Strike     float64       `json:"strike"`
	ExpiryDate int64         `json:"expiry_date,omitempty"`
	Method     PricingMethod `json:"method"`
	Price      float64       `json:"price"`
	StdErr     float64       `json:"std_err,omitempty"`
	MarketData MarketData    `json:"market_data"`
	OccurredOn time.Time     `json:"occurred_on"`
}

// GreeksCalculatedEvent 希腊字母计算完成事件
type GreeksCalculatedEvent struct {
	Underlying string        `json:"underlying"`
	Kind       OptionKind    `json:"kind"`
	Strike     float64       `json:"strike"`
	Method     PricingMethod `json:"method"`
	Analytic   bool          `json:"analytic"`
	Greeks     Greeks        `json:"greeks"`
	MarketData MarketData    `json:"market_data"`
	OccurredOn time.Time     `json:"occurred_on"`
}

// ImpliedVolSolvedEvent 隐含波动率求解事件，未收敛也会发布
type ImpliedVolSolvedEvent struct {
	Underlying  string        `json:"underlying"`
	Kind        OptionKind    `json:"kind"`
	Strike      float64       `json:"strike"`
	Method      PricingMethod `json:"method"`
	TargetPrice float64       `json:"target_price"`
	Vol         float64       `json:"vol"`
	Converged   bool          `json:"converged"`
	Iterations  int           `json:"iterations"`
	OccurredOn  time.Time     `json:"occurred_on"`
}

// BatchPricingCompletedEvent 批量定价完成事件
type BatchPricingCompletedEvent struct {
	BatchID        string    `json:"batch_id"`
	Underlyings    []string  `json:"underlyings"`
	TotalContracts int       `json:"total_contracts"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	AverageTime    float64   `json:"average_time"`
	OccurredOn     time.Time `json:"occurred_on"`
}
