package application

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
)

// dtoPlaces 对外输出保留的小数位
const dtoPlaces = 8

// PricingResultDTO 定价结果 DTO
type PricingResultDTO struct {
	Underlying     string            `json:"underlying"`
	Kind           string            `json:"kind"`
	Strike         decimal.Decimal   `json:"strike"`
	Method         string            `json:"method"`
	Price          decimal.Decimal   `json:"price"`
	StdErr         *decimal.Decimal  `json:"std_err,omitempty"`
	ControlVariate bool              `json:"control_variate,omitempty"`
	MarketData     domain.MarketData `json:"market_data"`
	CalculatedAt   time.Time         `json:"calculated_at"`
}

// GreeksDTO 希腊字母 DTO
type GreeksDTO struct {
	Underlying string          `json:"underlying"`
	Kind       string          `json:"kind"`
	Method     string          `json:"method"`
	Analytic   bool            `json:"analytic"`
	Delta      decimal.Decimal `json:"delta"`
	Gamma      decimal.Decimal `json:"gamma"`
	Theta      decimal.Decimal `json:"theta"`
	Vega       decimal.Decimal `json:"vega"`
	Rho        decimal.Decimal `json:"rho"`
}

// ImpliedVolDTO 隐含波动率 DTO
type ImpliedVolDTO struct {
	Underlying  string          `json:"underlying"`
	Kind        string          `json:"kind"`
	Method      string          `json:"method"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Vol         decimal.Decimal `json:"vol"`
	Converged   bool            `json:"converged"`
	Iterations  int             `json:"iterations"`
}

// ScenarioDTO 路径模拟 DTO，终值序列保持 float64 供画图使用
type ScenarioDTO struct {
	NumScenarios  int                `json:"num_scenarios"`
	NumSteps      int                `json:"num_steps"`
	Antithetic    bool               `json:"antithetic"`
	Mean          decimal.Decimal    `json:"mean"`
	StdDev        decimal.Decimal    `json:"std_dev"`
	Quantiles     map[string]float64 `json:"quantiles"`
	Histogram     domain.Histogram   `json:"histogram"`
	TerminalSpots []float64          `json:"terminal_spots"`
	SamplePaths   [][]float64        `json:"sample_paths,omitempty"`
}

// BatchItemErrorDTO 批量定价失败项
type BatchItemErrorDTO struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchPricingDTO 批量定价 DTO
type BatchPricingDTO struct {
	BatchID      string              `json:"batch_id"`
	Results      []*PricingResultDTO `json:"results"`
	Errors       []BatchItemErrorDTO `json:"errors,omitempty"`
	SuccessCount int                 `json:"success_count"`
	FailureCount int                 `json:"failure_count"`
	AverageTime  float64             `json:"average_time"`
}

// Round 保留 8 位小数；非有限值记为 0
func Round(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(dtoPlaces)
}

// ToPricingResultDTO 转换定价结果
func ToPricingResultDTO(r *domain.PricingResult) *PricingResultDTO {
	if r == nil {
		return nil
	}
	dto := &PricingResultDTO{
		Underlying:   r.Underlying,
		Kind:         string(r.Kind),
		Strike:       Round(r.Strike),
		Method:       string(r.Method),
		Price:        Round(r.Price),
		MarketData:   r.MarketData,
		CalculatedAt: r.CalculatedAt,
	}
	if r.Method == domain.MethodMonteCarlo {
		dto.ControlVariate = r.ControlVariate
		se := Round(r.StdErr)
		dto.StdErr = &se
	}
	return dto
}

// ToGreeksDTO 转换希腊字母结果
func ToGreeksDTO(r *GreeksResult) *GreeksDTO {
	return &GreeksDTO{
		Underlying: r.Underlying,
		Kind:       string(r.Kind),
		Method:     string(r.Method),
		Analytic:   r.Analytic,
		Delta:      Round(r.Greeks.Delta),
		Gamma:      Round(r.Greeks.Gamma),
		Theta:      Round(r.Greeks.Theta),
		Vega:       Round(r.Greeks.Vega),
		Rho:        Round(r.Greeks.Rho),
	}
}

// ToImpliedVolDTO 转换隐含波动率结果
func ToImpliedVolDTO(r *ImpliedVolResult) *ImpliedVolDTO {
	return &ImpliedVolDTO{
		Underlying:  r.Underlying,
		Kind:        string(r.Kind),
		Method:      string(r.Method),
		TargetPrice: Round(r.TargetPrice),
		Vol:         Round(r.Vol),
		Converged:   r.Converged,
		Iterations:  r.Iterations,
	}
}

// ToScenarioDTO 转换路径模拟结果
func ToScenarioDTO(r *ScenarioResult) *ScenarioDTO {
	q := make(map[string]float64, len(r.Quantiles))
	for p, v := range r.Quantiles {
		q[decimal.NewFromFloat(p).String()] = v
	}
	return &ScenarioDTO{
		NumScenarios:  r.NumScenarios,
		NumSteps:      r.NumSteps,
		Antithetic:    r.Antithetic,
		Mean:          Round(r.Mean),
		StdDev:        Round(r.StdDev),
		Quantiles:     q,
		Histogram:     r.Histogram,
		TerminalSpots: r.TerminalSpots,
		SamplePaths:   r.SamplePaths,
	}
}

// ToBatchPricingDTO 转换批量定价结果，只保留成功项
func ToBatchPricingDTO(r *BatchPricingResult) *BatchPricingDTO {
	dto := &BatchPricingDTO{
		BatchID:      r.BatchID,
		Results:      make([]*PricingResultDTO, 0, r.SuccessCount),
		SuccessCount: r.SuccessCount,
		FailureCount: r.FailureCount,
		AverageTime:  r.AverageTime,
	}
	for _, res := range r.Results {
		if res != nil {
			dto.Results = append(dto.Results, ToPricingResultDTO(res))
		}
	}
	for _, e := range r.Errors {
		dto.Errors = append(dto.Errors, BatchItemErrorDTO{Index: e.Index, Error: e.Err.Error()})
	}
	return dto
}
