package models

import "time"

// HistoryEntry строка внутренней истории продаж или закупок
type HistoryEntry struct {
	ID           string    `json:"id"`
	PartNumber   string    `json:"part_number"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Counterparty string    `json:"counterparty"` // клиент для продаж, поставщик для закупок
	Quantity     int       `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	Currency     string    `json:"currency"`
	DocumentRef  string    `json:"document_ref,omitempty"` // номер заказа / счета
	OccurredAt   time.Time `json:"occurred_at"`
}
