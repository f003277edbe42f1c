package models

import (
	"strings"

	"github.com/athebyme/gomarket-sourcing/internal/utils"
)

// ConnectorName имя источника данных; набор имен закрыт
type ConnectorName string

const (
	ConnectorAmazon    ConnectorName = "amazon"
	ConnectorEbay      ConnectorName = "ebay"
	ConnectorIngram    ConnectorName = "ingram"
	ConnectorTDSynnex  ConnectorName = "tdsynnex"
	ConnectorBrokerBin ConnectorName = "brokerbin"
	ConnectorEpicor    ConnectorName = "epicor"
	ConnectorSales     ConnectorName = "sales"
	ConnectorPurchases ConnectorName = "purchases"

	// Исторические имена tdsynnex, сохранены для старых отчетов
	ConnectorSynnex   ConnectorName = "synnex"
	ConnectorTechData ConnectorName = "techdata"
)

// connectorOrder задает порядок ключей в отчетах
var connectorOrder = []ConnectorName{
	ConnectorAmazon,
	ConnectorEbay,
	ConnectorIngram,
	ConnectorTDSynnex,
	ConnectorBrokerBin,
	ConnectorEpicor,
	ConnectorSales,
	ConnectorPurchases,
	ConnectorSynnex,
	ConnectorTechData,
}

var legacyAliases = map[ConnectorName]ConnectorName{
	ConnectorSynnex:   ConnectorTDSynnex,
	ConnectorTechData: ConnectorTDSynnex,
}

// AllConnectors возвращает полный набор ключей в документированном порядке
func AllConnectors() []ConnectorName {
	out := make([]ConnectorName, len(connectorOrder))
	copy(out, connectorOrder)
	return out
}

// CanonicalConnectors возвращает имена без устаревших псевдонимов
func CanonicalConnectors() []ConnectorName {
	out := make([]ConnectorName, 0, len(connectorOrder))
	for _, name := range connectorOrder {
		if !name.IsAlias() {
			out = append(out, name)
		}
	}
	return out
}

// IsKnown проверяет, входит ли имя в закрытый набор
func (n ConnectorName) IsKnown() bool {
	for _, name := range connectorOrder {
		if name == n {
			return true
		}
	}
	return false
}

// IsAlias сообщает, является ли имя устаревшим псевдонимом
func (n ConnectorName) IsAlias() bool {
	_, ok := legacyAliases[n]
	return ok
}

// Canonical возвращает каноническое имя коннектора
func (n ConnectorName) Canonical() ConnectorName {
	if c, ok := legacyAliases[n]; ok {
		return c
	}
	return n
}

func (n ConnectorName) String() string {
	return string(n)
}

// ParseConnector разбирает имя коннектора без учета регистра
func ParseConnector(s string) (ConnectorName, error) {
	name := ConnectorName(strings.ToLower(strings.TrimSpace(s)))
	if !name.IsKnown() {
		return "", utils.ErrUnknownConnector
	}
	return name, nil
}

// ParseConnectors разбирает список имен и приводит их к каноническим, убирая дубликаты
func ParseConnectors(values []string) ([]ConnectorName, error) {
	seen := make(map[ConnectorName]struct{}, len(values))
	out := make([]ConnectorName, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		name, err := ParseConnector(v)
		if err != nil {
			return nil, err
		}
		name = name.Canonical()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
