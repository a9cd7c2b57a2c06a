package fees

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/dca-vault-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service manages per-denom swap fee overrides and fee application
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// SwapFeePercentFor returns the fee percent to apply for proceeds in the given
// denom. A custom per-denom fee takes precedence over the global default.
func (s *Service) SwapFeePercentFor(denom string, globalDefault decimal.Decimal) (decimal.Decimal, error) {
	custom, err := s.db.GetCustomSwapFee(denom)
	if err != nil {
		return decimal.Zero, err
	}
	if custom != nil {
		return custom.SwapFeePercent, nil
	}
	return globalDefault, nil
}

func (s *Service) SetCustomSwapFee(denom string, percent decimal.Decimal) error {
	logger := log.With().
		Str("service", "fees").
		Str("denom", denom).
		Str("swap_fee_percent", percent.String()).
		Logger()

	if err := s.db.UpsertCustomSwapFee(&CustomSwapFee{Denom: denom, SwapFeePercent: percent}); err != nil {
		logger.Error().Err(err).Msg("failed to save custom swap fee")
		return err
	}

	logger.Info().Msg("custom swap fee saved")
	return nil
}

func (s *Service) RemoveCustomSwapFee(denom string) error {
	return s.db.DeleteCustomSwapFee(denom)
}

func (s *Service) GetCustomSwapFees() ([]CustomSwapFee, error) {
	return s.db.GetCustomSwapFees()
}

// GinHandlers contains HTTP handlers for swap fee administration
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type customSwapFeeRequest struct {
	Denom          string          `json:"denom" binding:"required"`
	SwapFeePercent decimal.Decimal `json:"swap_fee_percent"`
}

// SetCustomSwapFeeHandler handles POST requests to create or replace a per-denom fee
func (h *GinHandlers) SetCustomSwapFeeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req customSwapFeeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.SwapFeePercent.IsNegative() || req.SwapFeePercent.GreaterThan(decimal.NewFromInt(1)) {
			response.BadRequest(c, "Swap fee percent must be between 0 and 1")
			return
		}

		if err := h.service.SetCustomSwapFee(req.Denom, req.SwapFeePercent); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{"denom": req.Denom})
	}
}

// RemoveCustomSwapFeeHandler handles DELETE requests for a per-denom fee
// URL parameter: denom
func (h *GinHandlers) RemoveCustomSwapFeeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		denom := c.Param("denom")
		if denom == "" {
			response.BadRequest(c, "Denom is required")
			return
		}

		err := h.service.RemoveCustomSwapFee(denom)
		response.Handle(c, gin.H{"denom": denom}, err)
	}
}

// GetCustomSwapFeesHandler handles GET requests listing all per-denom fees
func (h *GinHandlers) GetCustomSwapFeesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.service.GetCustomSwapFees()
		response.Handle(c, result, err)
	}
}
