package vault

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/dca-vault-api/internal/scheduler"
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/ksred/dca-vault-api/pkg/response"
)

// GinHandlers contains all HTTP handlers for vault operations
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func vaultIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Vault id must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleVaultError maps the service's sentinel errors onto HTTP responses
func handleVaultError(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, ErrVaultNotFound), errors.Is(err, ErrTriggerNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrWrongOwner):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrVaultCancelled),
		errors.Is(err, ErrDenomMismatch),
		errors.Is(err, ErrInvalidDeposit),
		errors.Is(err, ErrBadDestinations),
		errors.Is(err, ErrEscrowNotDisbursable),
		errors.Is(err, scheduler.ErrTriggerNotDue):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrEnginePaused):
		response.Conflict(c, err.Error())
	default:
		response.Handle(c, data, err)
	}
}

// CreateVaultHandler handles POST requests to create a new vault
// Requires an idempotency key in headers
func (h *GinHandlers) CreateVaultHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get idempotency key from header
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		var req CreateVaultRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.CreateVaultIdempotent(req, idempotencyKey)
		handleVaultError(c, result, err)
	}
}

// GetVaultHandler handles GET requests for a single vault
// URL parameter: id
func (h *GinHandlers) GetVaultHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := vaultIDParam(c)
		if !ok {
			return
		}

		result, err := h.service.GetVault(id)
		handleVaultError(c, result, err)
	}
}

// GetVaultsHandler handles GET requests listing vaults
// Query parameters: owner, status, limit
func (h *GinHandlers) GetVaultsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := VaultFilters{
			Owner:  c.Query("owner"),
			Status: types.VaultStatus(c.Query("status")),
		}
		if limit := c.Query("limit"); limit != "" {
			parsed, err := strconv.Atoi(limit)
			if err != nil || parsed < 0 {
				response.BadRequest(c, "Limit must be a non-negative integer")
				return
			}
			filters.Limit = parsed
		}

		result, err := h.service.GetVaults(filters)
		handleVaultError(c, result, err)
	}
}

// DepositHandler handles POST requests to top up a vault
// Requires an idempotency key in headers
// URL parameter: id
func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get idempotency key from header
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		id, ok := vaultIDParam(c)
		if !ok {
			return
		}

		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.DepositIdempotent(id, req, idempotencyKey)
		handleVaultError(c, result, err)
	}
}

type cancelVaultRequest struct {
	Address string `json:"address"`
}

// CancelVaultHandler handles POST requests to cancel a vault. The owner
// cancels through the public surface; internal callers pass no address and
// cancel on the owner's behalf.
func (h *GinHandlers) CancelVaultHandler(internal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := vaultIDParam(c)
		if !ok {
			return
		}

		var req cancelVaultRequest
		if err := c.ShouldBindJSON(&req); err != nil && !internal {
			response.BadRequest(c, err.Error())
			return
		}
		if !internal && req.Address == "" {
			response.BadRequest(c, "Address is required")
			return
		}

		result, err := h.service.CancelVault(id, req.Address, internal)
		handleVaultError(c, result, err)
	}
}

// ExecuteTriggerHandler handles POST requests from keepers to fire a trigger
// URL parameter: id (the trigger's vault id)
// Requires internal authentication
func (h *GinHandlers) ExecuteTriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := vaultIDParam(c)
		if !ok {
			return
		}

		if err := h.service.ExecuteTrigger(id); err != nil {
			handleVaultError(c, nil, err)
			return
		}

		result, err := h.service.GetVault(id)
		handleVaultError(c, result, err)
	}
}

// DisburseEscrowHandler handles POST requests to settle a completed or
// cancelled extended-mode vault's escrow
// Requires internal authentication
func (h *GinHandlers) DisburseEscrowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := vaultIDParam(c)
		if !ok {
			return
		}

		result, err := h.service.DisburseEscrow(id)
		handleVaultError(c, result, err)
	}
}
