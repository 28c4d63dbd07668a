package application

import (
	"time"

	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
)

// PriceOptionCommand 期权定价命令
type PriceOptionCommand struct {
	Underlying string
	OptionKind string
	Strike     float64
	// 到期日（毫秒时间戳），MarketData.Time 未给出时据此计算剩余期限
	ExpiryDate int64
	// 定价方法，空值为 BLACK_SCHOLES
	Method     string
	MarketData domain.MarketData

	// 蒙特卡洛参数，零值使用引擎配置
	Scenarios      int
	Steps          int
	Seed           *int64
	Antithetic     *bool
	ControlVariate *bool
	// 三叉树步数，零值使用引擎配置
	LatticeSteps int
}

// ImpliedVolCommand 隐含波动率求解命令，MarketData.Vol 作为初始猜测
type ImpliedVolCommand struct {
	PriceOptionCommand
	TargetPrice float64
	Tolerance   float64
	MaxIter     int
}

// ScenarioCommand 路径模拟命令
type ScenarioCommand struct {
	MarketData   domain.MarketData
	Scenarios    int
	Steps        int
	Seed         *int64
	NormalMethod string
	Antithetic   bool
	// 直方图分箱数，零值为 50
	Bins int
	// 返回的样本路径条数
	SamplePaths int
}

// BatchPriceOptionsCommand 批量定价命令
type BatchPriceOptionsCommand struct {
	BatchID   string
	Contracts []PriceOptionCommand
}

// GreeksResult 希腊字母结果
type GreeksResult struct {
	Underlying   string
	Kind         domain.OptionKind
	Strike       float64
	Method       domain.PricingMethod
	Analytic     bool
	Greeks       domain.Greeks
	MarketData   domain.MarketData
	CalculatedAt time.Time
}

// ImpliedVolResult 隐含波动率结果
type ImpliedVolResult struct {
	Underlying  string
	Kind        domain.OptionKind
	Strike      float64
	Method      domain.PricingMethod
	TargetPrice float64
	domain.IVResult
}

// ScenarioResult 路径模拟结果
type ScenarioResult struct {
	NumScenarios  int
	NumSteps      int
	Antithetic    bool
	TerminalSpots []float64
	Mean          float64
	StdDev        float64
	// 终值分位数，键为 0.05、0.5、0.95
	Quantiles   map[float64]float64
	Histogram   domain.Histogram
	SamplePaths [][]float64
}

// BatchItemError 批量定价中单个合约的失败原因
type BatchItemError struct {
	Index int
	Err   error
}

// BatchPricingResult 批量定价结果，Results 与命令中的合约一一对应，失败项为 nil
type BatchPricingResult struct {
	BatchID      string
	Results      []*domain.PricingResult
	Errors       []BatchItemError
	SuccessCount int
	FailureCount int
	AverageTime  float64
}
