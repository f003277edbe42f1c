package connectors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
)

// Registry набор сконфигурированных коннекторов по каноническим именам
type Registry struct {
	mu         sync.RWMutex
	connectors map[models.ConnectorName]Connector
}

// NewRegistry создает реестр из готовых коннекторов
func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[models.ConnectorName]Connector, len(connectors))}
	for _, c := range connectors {
		r.Register(c)
	}
	return r
}

// Build создает HTTP-коннекторы из настроек.
// Настройки под устаревшими именами synnex и techdata применяются к tdsynnex,
// если для tdsynnex ничего не задано; из двух псевдонимов берется первый по алфавиту. history может быть nil, тогда sales и purchases не создаются.
func Build(settings map[string]Settings, history HistorySource) (*Registry, error) {
	raws := make([]string, 0, len(settings))
	for raw := range settings {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	resolved := make(map[models.ConnectorName]Settings, len(settings))
	for _, raw := range raws {
		s := settings[raw]
		name, err := models.ParseConnector(raw)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", raw, err)
		}
		canonical := name.Canonical()
		if _, exists := resolved[canonical]; exists && name.IsAlias() {
			continue
		}
		resolved[canonical] = s
	}

	r := NewRegistry()
	for _, name := range models.CanonicalConnectors() {
		s, ok := resolved[name]
		if !ok || !s.Enabled {
			continue
		}

		var (
			c   Connector
			err error
		)
		switch name {
		case models.ConnectorAmazon:
			c, err = NewAmazonConnector(s)
		case models.ConnectorEbay:
			c, err = NewEbayConnector(s)
		case models.ConnectorIngram:
			c, err = NewIngramConnector(s)
		case models.ConnectorTDSynnex:
			c, err = NewTDSynnexConnector(s)
		case models.ConnectorBrokerBin:
			c, err = NewBrokerBinConnector(s)
		case models.ConnectorEpicor:
			c, err = NewEpicorConnector(s)
		case models.ConnectorSales:
			if history == nil {
				continue
			}
			c = NewSalesConnector(history)
		case models.ConnectorPurchases:
			if history == nil {
				continue
			}
			c = NewPurchasesConnector(history)
		}
		if err != nil {
			return nil, err
		}
		r.Register(c)
	}
	return r, nil
}

// Register добавляет или заменяет коннектор
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Name().Canonical()] = c
}

// Get возвращает коннектор по имени; псевдонимы разрешаются в каноническое имя
func (r *Registry) Get(name models.ConnectorName) (Connector, error) {
	if !name.IsKnown() {
		return nil, fmt.Errorf("%w: %q", utils.ErrUnknownConnector, name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[name.Canonical()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", utils.ErrConnectorDisabled, name)
	}
	return c, nil
}

// Enabled возвращает включенные коннекторы в документированном порядке
func (r *Registry) Enabled() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Connector, 0, len(r.connectors))
	for _, name := range models.CanonicalConnectors() {
		if c, ok := r.connectors[name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Names возвращает имена включенных коннекторов
func (r *Registry) Names() []models.ConnectorName {
	enabled := r.Enabled()
	out := make([]models.ConnectorName, len(enabled))
	for i, c := range enabled {
		out[i] = c.Name()
	}
	return out
}

// Select возвращает коннекторы из списка или все включенные, если список пуст
func (r *Registry) Select(names []models.ConnectorName) ([]Connector, error) {
	if len(names) == 0 {
		return r.Enabled(), nil
	}
	out := make([]Connector, 0, len(names))
	for _, name := range names {
		c, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// AlternativeSources возвращает включенные коннекторы, умеющие искать альтернативы
func (r *Registry) AlternativeSources() []AlternativesSource {
	var out []AlternativesSource
	for _, c := range r.Enabled() {
		if a, ok := c.(AlternativesSource); ok {
			out = append(out, a)
		}
	}
	return out
}
