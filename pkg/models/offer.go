package models

import "time"

// Offer представляет одно предложение товара, найденное коннектором
type Offer struct {
	Connector     string    `json:"connector" yaml:"connector" toml:"connector"`                                                 // Имя коннектора-источника
	PartNumber    string    `json:"part_number" yaml:"part_number" toml:"part_number"`                                           // Артикул (MPN, SKU, ASIN)
	Manufacturer  string    `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty" toml:"manufacturer,omitempty"`          // Производитель
	Description   string    `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`             // Описание
	Condition     string    `json:"condition,omitempty" yaml:"condition,omitempty" toml:"condition,omitempty"`                   // "new", "used", "refurbished"
	Price         float64   `json:"price" yaml:"price" toml:"price"`                                                             // Цена за единицу
	Currency      string    `json:"currency,omitempty" yaml:"currency,omitempty" toml:"currency,omitempty"`                      // Валюта ISO 4217
	Quantity      int       `json:"quantity" yaml:"quantity" toml:"quantity"`                                                    // Доступный остаток
	Seller        string    `json:"seller,omitempty" yaml:"seller,omitempty" toml:"seller,omitempty"`                            // Продавец / дистрибьютор
	URL           string    `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`                                     // Ссылка на предложение
	IsAlternative bool      `json:"is_alternative" yaml:"is_alternative" toml:"is_alternative"`                                  // Найдено по альтернативному артикулу
	AlternativeOf string    `json:"alternative_of,omitempty" yaml:"alternative_of,omitempty" toml:"alternative_of,omitempty"`    // Артикул, для которого это альтернатива
	Depth         int       `json:"depth" yaml:"depth" toml:"depth"`                                                             // Уровень вложенности альтернативы (0 - исходный артикул)
	FetchedAt     time.Time `json:"fetched_at" yaml:"fetched_at" toml:"fetched_at"`                                              // Время получения
}
