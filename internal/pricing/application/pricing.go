package application

import (
	"context"

	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
	"github.com/wyfcoding/quantpricing/pkg/metrics"
)

// PricingService 定价门面服务。
type PricingService struct {
	Command *PricingCommandService
	Query   *PricingQueryService
}

// NewPricingService 构造函数。
func NewPricingService(engines *PricingEngines, publisher domain.EventPublisher, collector metrics.MetricsCollector) *PricingService {
	return &PricingService{
		Command: NewPricingCommandService(engines, publisher, collector),
		Query:   NewPricingQueryService(engines, collector),
	}
}

// --- Command Facade ---

func (s *PricingService) Price(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	return s.Command.PriceOption(ctx, cmd)
}

func (s *PricingService) Greeks(ctx context.Context, cmd PriceOptionCommand) (*GreeksResult, error) {
	return s.Command.CalculateGreeks(ctx, cmd)
}

func (s *PricingService) ImpliedVol(ctx context.Context, cmd ImpliedVolCommand) (*ImpliedVolResult, error) {
	return s.Command.SolveImpliedVol(ctx, cmd)
}

func (s *PricingService) BatchPrice(ctx context.Context, cmd BatchPriceOptionsCommand) (*BatchPricingResult, error) {
	return s.Command.BatchPriceOptions(ctx, cmd)
}

// --- Query Facade ---

func (s *PricingService) GenerateScenarios(ctx context.Context, cmd ScenarioCommand) (*ScenarioResult, error) {
	return s.Query.GenerateScenarios(ctx, cmd)
}

func (s *PricingService) Uniform(ctx context.Context, n int, seed *int64) ([]float64, error) {
	return s.Query.Uniform(ctx, n, seed)
}

func (s *PricingService) Normal(ctx context.Context, n int, seed *int64, method string) ([]float64, error) {
	return s.Query.Normal(ctx, n, seed, method)
}
