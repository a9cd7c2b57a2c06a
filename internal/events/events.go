package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/dca-vault-api/pkg/response"
	"gorm.io/gorm"
)

// Service owns the append-only event ledger
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Build marshals an event payload into a ledger row
func Build(resourceID uint64, at time.Time, data EventData) (*Event, error) {
	eventType := data.Type()
	if eventType == "" {
		return nil, fmt.Errorf("event data for resource %d has no payload", resourceID)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &Event{
		EventID:    uuid.New().String(),
		ResourceID: resourceID,
		Type:       eventType,
		Payload:    string(payload),
		Timestamp:  at,
	}, nil
}

// Append writes an event outside of any caller-managed transaction
func (s *Service) Append(resourceID uint64, at time.Time, data EventData) error {
	event, err := Build(resourceID, at, data)
	if err != nil {
		return err
	}
	return s.db.CreateEvent(event)
}

// AppendTx writes an event as part of the caller's transaction so that a failed
// operation leaves no ledger entry behind
func AppendTx(tx *gorm.DB, resourceID uint64, at time.Time, data EventData) error {
	event, err := Build(resourceID, at, data)
	if err != nil {
		return err
	}
	return tx.Create(event).Error
}

// GetByResourceID returns the decoded ledger for a vault in order of occurrence
func (s *Service) GetByResourceID(resourceID uint64) ([]EventResponse, error) {
	records, err := s.db.GetEventsByResourceID(resourceID)
	if err != nil {
		return nil, err
	}

	results := make([]EventResponse, 0, len(records))
	for _, record := range records {
		var data EventData
		if err := json.Unmarshal([]byte(record.Payload), &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for event %s: %w", record.EventID, err)
		}
		results = append(results, EventResponse{
			EventID:    record.EventID,
			ResourceID: record.ResourceID,
			Type:       record.Type,
			Timestamp:  record.Timestamp,
			Data:       data,
		})
	}

	return results, nil
}

// GinHandlers contains HTTP handlers for the event query surface
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetEventsByResourceIDHandler handles GET requests for a vault's event ledger
// URL parameter: resource_id
func (h *GinHandlers) GetEventsByResourceIDHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resourceID, err := strconv.ParseUint(c.Param("resource_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "Resource ID must be an integer")
			return
		}

		result, err := h.service.GetByResourceID(resourceID)
		response.Handle(c, result, err)
	}
}
