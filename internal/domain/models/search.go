package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/utils"
)

const (
	// DefaultUseAlternatives включает поиск альтернатив по умолчанию
	DefaultUseAlternatives = true
	// DefaultNestedLevel один дополнительный уровень альтернатив
	DefaultNestedLevel = 1
	// UnlimitedNestedLevel снимает ограничение глубины, циклы отсекаются множеством посещенных
	UnlimitedNestedLevel = -1
)

// SearchStatus состояние запуска поиска
type SearchStatus string

const (
	SearchPending   SearchStatus = "pending"
	SearchRunning   SearchStatus = "running"
	SearchCompleted SearchStatus = "completed"
	SearchPartial   SearchStatus = "partial"
	SearchFailed    SearchStatus = "failed"
)

// SearchOptions параметры запуска поиска
type SearchOptions struct {
	PartNumber      string          `json:"part_number"`
	UseAlternatives bool            `json:"use_alternatives"`
	NestedLevel     int             `json:"nested_level"`
	MaxAlternatives int             `json:"max_alternatives,omitempty"` // 0 - без ограничения
	Connectors      []ConnectorName `json:"connectors,omitempty"`      // пусто - все включенные
	NoCache         bool            `json:"no_cache,omitempty"`
}

// DefaultSearchOptions возвращает параметры по умолчанию
func DefaultSearchOptions(partNumber string) SearchOptions {
	return SearchOptions{
		PartNumber:      partNumber,
		UseAlternatives: DefaultUseAlternatives,
		NestedLevel:     DefaultNestedLevel,
	}
}

// Validate проверяет параметры и нормализует артикул и список коннекторов
func (o *SearchOptions) Validate() error {
	o.PartNumber = strings.TrimSpace(o.PartNumber)
	if o.PartNumber == "" {
		return utils.ErrEmptyQuery
	}
	if o.NestedLevel < UnlimitedNestedLevel {
		return utils.ErrInvalidNestedLevel
	}
	if o.MaxAlternatives < 0 {
		return utils.ErrInvalidMaxAlts
	}

	raw := make([]string, len(o.Connectors))
	for i, c := range o.Connectors {
		raw[i] = string(c)
	}
	connectors, err := ParseConnectors(raw)
	if err != nil {
		return err
	}
	o.Connectors = connectors
	return nil
}

// CacheKey строит ключ кэша из нормализованных параметров
func (o SearchOptions) CacheKey() string {
	connectors := make([]string, len(o.Connectors))
	for i, c := range o.Connectors {
		connectors[i] = string(c)
	}
	sort.Strings(connectors)

	var b strings.Builder
	b.WriteString(strings.ToUpper(o.PartNumber))
	b.WriteString("|")
	b.WriteString(strconv.FormatBool(o.UseAlternatives))
	b.WriteString("|")
	b.WriteString(strconv.Itoa(o.NestedLevel))
	b.WriteString("|")
	b.WriteString(strconv.Itoa(o.MaxAlternatives))
	b.WriteString("|")
	b.WriteString(strings.Join(connectors, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return "search:" + hex.EncodeToString(sum[:16])
}

// Alternative найденный альтернативный артикул
type Alternative struct {
	PartNumber string        `json:"part_number"`
	Parent     string        `json:"parent"`
	Depth      int           `json:"depth"` // 1 - прямая альтернатива исходного артикула
	Source     ConnectorName `json:"source"`
}

// DiscoveryStats статистика обхода альтернатив
type DiscoveryStats struct {
	Levels       int           `json:"levels"`
	NodesVisited int           `json:"nodes_visited"`
	Truncated    bool          `json:"truncated"`
	Errors       int           `json:"errors"`
	Duration     time.Duration `json:"duration"`
}

// Finished сообщает, завершен ли запуск
func (s SearchStatus) Finished() bool {
	return s == SearchCompleted || s == SearchPartial || s == SearchFailed
}

// Search запуск поиска с результатами
type Search struct {
	ID           string                   `json:"id"`
	Options      SearchOptions            `json:"options"`
	Status       SearchStatus             `json:"status"`
	Results      *Results                 `json:"results"`
	Alternatives []Alternative            `json:"alternatives"`
	Discovery    DiscoveryStats           `json:"discovery"`
	Errors       map[ConnectorName]string `json:"errors,omitempty"`
	Failure      string                   `json:"failure,omitempty"` // причина статуса failed, не связанная с коннектором
	CacheHit     bool                     `json:"cache_hit"`
	CreatedAt    time.Time                `json:"created_at"`
	FinishedAt   *time.Time               `json:"finished_at,omitempty"`
}

// NewSearch создает запуск в состоянии pending с пустым агрегатором
func NewSearch(id string, opts SearchOptions) *Search {
	return &Search{
		ID:           id,
		Options:      opts,
		Status:       SearchPending,
		Results:      NewResults(),
		Alternatives: []Alternative{},
		Errors:       make(map[ConnectorName]string),
		CreatedAt:    time.Now().UTC(),
	}
}

// SearchSummary краткое описание запуска для списков
type SearchSummary struct {
	ID         string       `json:"id"`
	PartNumber string       `json:"part_number"`
	Status     SearchStatus `json:"status"`
	OfferCount int          `json:"offer_count"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}
