package config

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ksred/dca-vault-api/internal/fees"
	"github.com/ksred/dca-vault-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrCollectorAllocations = errors.New("fee collector allocations must sum to exactly 1")

// DefaultSettings are applied on first start and can be changed at runtime
// through UpdateConfig
func DefaultSettings() Settings {
	return Settings{
		SwapFeePercent:       decimal.NewFromFloat(0.015),
		DelegationFeePercent: decimal.NewFromFloat(0.0075),
		EscrowLevel:          decimal.NewFromFloat(0.05),
		PerformanceFeeRate:   decimal.NewFromFloat(0.2),
		PageLimit:            30,
		Paused:               false,
	}
}

// Service owns the engine-wide settings row and the fee collector table
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

func (s *Service) GetSettings() (*Settings, error) {
	return s.db.GetSettings()
}

// GetFeeCollectors returns the collector set in fee-calculator form
func (s *Service) GetFeeCollectors() ([]fees.Collector, error) {
	records, err := s.db.GetFeeCollectors()
	if err != nil {
		return nil, err
	}

	collectors := make([]fees.Collector, 0, len(records))
	for _, record := range records {
		collectors = append(collectors, fees.Collector{
			Address:    record.Address,
			Allocation: record.Allocation,
		})
	}
	return collectors, nil
}

// UpdateConfigRequest carries partial settings updates; nil fields are untouched
type UpdateConfigRequest struct {
	SwapFeePercent       *decimal.Decimal `json:"swap_fee_percent,omitempty"`
	DelegationFeePercent *decimal.Decimal `json:"delegation_fee_percent,omitempty"`
	EscrowLevel          *decimal.Decimal `json:"escrow_level,omitempty"`
	PerformanceFeeRate   *decimal.Decimal `json:"performance_fee_rate,omitempty"`
	PageLimit            *int             `json:"page_limit,omitempty"`
	Paused               *bool            `json:"paused,omitempty"`
	FeeCollectors        []FeeCollector   `json:"fee_collectors,omitempty"`
}

// UpdateConfig applies a partial settings update
func (s *Service) UpdateConfig(req UpdateConfigRequest) (*Settings, error) {
	logger := log.With().Str("service", "config").Logger()

	settings, err := s.db.GetSettings()
	if err != nil {
		return nil, err
	}

	if req.SwapFeePercent != nil {
		settings.SwapFeePercent = *req.SwapFeePercent
	}
	if req.DelegationFeePercent != nil {
		settings.DelegationFeePercent = *req.DelegationFeePercent
	}
	if req.EscrowLevel != nil {
		settings.EscrowLevel = *req.EscrowLevel
	}
	if req.PerformanceFeeRate != nil {
		settings.PerformanceFeeRate = *req.PerformanceFeeRate
	}
	if req.PageLimit != nil {
		settings.PageLimit = *req.PageLimit
	}
	if req.Paused != nil {
		settings.Paused = *req.Paused
	}

	if req.FeeCollectors != nil {
		if err := validateCollectors(req.FeeCollectors); err != nil {
			return nil, err
		}
		if err := s.db.ReplaceFeeCollectors(req.FeeCollectors); err != nil {
			return nil, err
		}
	}

	if err := s.db.SaveSettings(settings); err != nil {
		logger.Error().Err(err).Msg("failed to save settings")
		return nil, err
	}

	logger.Info().
		Str("swap_fee_percent", settings.SwapFeePercent.String()).
		Bool("paused", settings.Paused).
		Msg("engine settings updated")

	return settings, nil
}

func validateCollectors(collectors []FeeCollector) error {
	total := decimal.Zero
	for _, collector := range collectors {
		if collector.Allocation.IsNegative() {
			return ErrCollectorAllocations
		}
		total = total.Add(collector.Allocation)
	}
	if !total.Equal(decimal.NewFromInt(1)) {
		return ErrCollectorAllocations
	}
	return nil
}

// Seed ensures the settings row and a default collector set exist
func (s *Service) Seed(defaultCollectorAddress string) error {
	if err := s.db.EnsureSettings(DefaultSettings()); err != nil {
		return err
	}

	existing, err := s.db.GetFeeCollectors()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	return s.db.ReplaceFeeCollectors([]FeeCollector{
		{Address: defaultCollectorAddress, Allocation: decimal.NewFromInt(1)},
	})
}

// GinHandlers contains HTTP handlers for engine configuration
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// UpdateConfigHandler handles POST requests to update engine settings
// Requires internal authentication
func (h *GinHandlers) UpdateConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateConfigRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		settings, err := h.service.UpdateConfig(req)
		if errors.Is(err, ErrCollectorAllocations) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Handle(c, settings, err)
	}
}

// GetConfigHandler handles GET requests for the current engine settings
func (h *GinHandlers) GetConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := h.service.GetSettings()
		response.Handle(c, settings, err)
	}
}
