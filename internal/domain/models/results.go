package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/athebyme/gomarket-sourcing/internal/utils"
	"github.com/athebyme/gomarket-sourcing/pkg/models"
)

// Results накапливает предложения по каждому коннектору.
// Набор ключей фиксируется в NewResults и больше не меняется; значения только дополняются.
type Results struct {
	mu      sync.RWMutex
	buckets map[ConnectorName][]models.Offer
}

// NewResults создает агрегатор со всеми ключами и пустыми списками
func NewResults() *Results {
	buckets := make(map[ConnectorName][]models.Offer, len(connectorOrder))
	for _, name := range connectorOrder {
		buckets[name] = []models.Offer{}
	}
	return &Results{buckets: buckets}
}

// Append добавляет предложения в конец списка коннектора
func (r *Results) Append(name ConnectorName, offers ...models.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[name]
	if !ok {
		return fmt.Errorf("%w: %q", utils.ErrUnknownConnector, name)
	}
	r.buckets[name] = append(bucket, offers...)
	return nil
}

// Get возвращает копию списка предложений коннектора
func (r *Results) Get(name ConnectorName) []models.Offer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.buckets[name]
	if !ok {
		return nil
	}
	out := make([]models.Offer, len(bucket))
	copy(out, bucket)
	return out
}

// Keys возвращает ключи в документированном порядке
func (r *Results) Keys() []ConnectorName {
	return AllConnectors()
}

// Len возвращает количество ключей
func (r *Results) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}

// Count возвращает количество предложений коннектора
func (r *Results) Count(name ConnectorName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets[name])
}

// Total возвращает общее количество предложений
func (r *Results) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, bucket := range r.buckets {
		total += len(bucket)
	}
	return total
}

// All возвращает все предложения в порядке ключей
func (r *Results) All() []models.Offer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Offer
	for _, name := range connectorOrder {
		out = append(out, r.buckets[name]...)
	}
	return out
}

// Canonical сворачивает списки псевдонимов в список канонического коннектора.
// Исходный агрегатор не меняется.
func (r *Results) Canonical() map[ConnectorName][]models.Offer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[ConnectorName][]models.Offer)
	for _, name := range connectorOrder {
		canonical := name.Canonical()
		if _, ok := out[canonical]; !ok {
			out[canonical] = []models.Offer{}
		}
		out[canonical] = append(out[canonical], r.buckets[name]...)
	}
	return out
}

// MarshalJSON сериализует агрегатор как объект с ключами в документированном порядке
func (r *Results) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range connectorOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(name))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.buckets[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON восстанавливает агрегатор; неизвестные ключи отклоняются
func (r *Results) UnmarshalJSON(data []byte) error {
	var raw map[string][]models.Offer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fresh := NewResults()
	for key, offers := range raw {
		if err := fresh.Append(ConnectorName(key), offers...); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.buckets = fresh.buckets
	r.mu.Unlock()
	return nil
}
