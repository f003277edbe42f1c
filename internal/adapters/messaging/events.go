package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
)

type EventType = string

const (
	SearchRequestedEvent EventType = "search_requested"
	SearchCompletedEvent EventType = "search_completed"
	SearchFailedEvent    EventType = "search_failed"
)

// Топики по умолчанию
const (
	SearchRequestsTopic = "search-requests"
	SearchEventsTopic   = "search-events"
)

// SearchEvent сообщение о запуске поиска
type SearchEvent struct {
	Type       EventType           `json:"type"`
	SearchID   string              `json:"search_id"`
	PartNumber string              `json:"part_number"`
	Status     models.SearchStatus `json:"status"`
	OfferCount int                 `json:"offer_count"`
	Error      string              `json:"error,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// NewSearchEvent собирает событие из состояния запуска
func NewSearchEvent(eventType EventType, search *models.Search) SearchEvent {
	ev := SearchEvent{
		Type:       eventType,
		SearchID:   search.ID,
		PartNumber: search.Options.PartNumber,
		Status:     search.Status,
		OccurredAt: time.Now().UTC(),
	}
	if search.Results != nil {
		ev.OfferCount = search.Results.Total()
	}
	return ev
}

func (e SearchEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeSearchEvent разбирает событие и проверяет обязательные поля
func DecodeSearchEvent(data []byte) (SearchEvent, error) {
	var ev SearchEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode search event: %w", err)
	}
	if ev.SearchID == "" {
		return ev, fmt.Errorf("failed to decode search event: empty search_id")
	}
	return ev, nil
}
