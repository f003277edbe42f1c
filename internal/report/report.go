// Package report выгружает результаты запуска поиска в файл или терминал
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format формат выгрузки
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat неизвестный формат выгрузки
var ErrUnknownFormat = errors.New("unknown report format")

// Formats поддерживаемые форматы
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatTOML, FormatCSV}
}

// ParseFormat разбирает имя формата; yml принимается как yaml
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatTOML, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Bucket предложения одного коннектора
type Bucket struct {
	Connector models.ConnectorName `json:"connector" yaml:"connector" toml:"connector"`
	Offers    []pkgmodels.Offer    `json:"offers" yaml:"offers" toml:"offers"`
}

// Alternative строка таблицы альтернатив
type Alternative struct {
	PartNumber string `yaml:"part_number" toml:"part_number"`
	Parent     string `yaml:"parent" toml:"parent"`
	Depth      int    `yaml:"depth" toml:"depth"`
	Source     string `yaml:"source" toml:"source"`
}

// Document плоское представление запуска для yaml и toml.
// Коннекторы идут списком, чтобы сохранить документированный порядок ключей.
type Document struct {
	ID              string            `yaml:"id" toml:"id"`
	PartNumber      string            `yaml:"part_number" toml:"part_number"`
	Status          string            `yaml:"status" toml:"status"`
	UseAlternatives bool              `yaml:"use_alternatives" toml:"use_alternatives"`
	NestedLevel     int               `yaml:"nested_level" toml:"nested_level"`
	CacheHit        bool              `yaml:"cache_hit" toml:"cache_hit"`
	CreatedAt       time.Time         `yaml:"created_at" toml:"created_at"`
	FinishedAt      string            `yaml:"finished_at,omitempty" toml:"finished_at,omitempty"`
	Failure         string            `yaml:"failure,omitempty" toml:"failure,omitempty"`
	TotalOffers     int               `yaml:"total_offers" toml:"total_offers"`
	Errors          map[string]string `yaml:"errors,omitempty" toml:"errors,omitempty"`
	Alternatives    []Alternative     `yaml:"alternatives" toml:"alternatives"`
	Results         []Bucket          `yaml:"results" toml:"results"`
}

// NewDocument строит документ из запуска
func NewDocument(search *models.Search) Document {
	results := search.Results
	if results == nil {
		results = models.NewResults()
	}

	doc := Document{
		ID:              search.ID,
		PartNumber:      search.Options.PartNumber,
		Status:          string(search.Status),
		UseAlternatives: search.Options.UseAlternatives,
		NestedLevel:     search.Options.NestedLevel,
		CacheHit:        search.CacheHit,
		CreatedAt:       search.CreatedAt,
		Failure:         search.Failure,
		TotalOffers:     results.Total(),
		Alternatives:    make([]Alternative, 0, len(search.Alternatives)),
		Results:         make([]Bucket, 0, results.Len()),
	}
	if search.FinishedAt != nil {
		doc.FinishedAt = search.FinishedAt.Format(time.RFC3339)
	}
	if len(search.Errors) > 0 {
		doc.Errors = make(map[string]string, len(search.Errors))
		for name, msg := range search.Errors {
			doc.Errors[string(name)] = msg
		}
	}
	for _, alt := range search.Alternatives {
		doc.Alternatives = append(doc.Alternatives, Alternative{
			PartNumber: alt.PartNumber,
			Parent:     alt.Parent,
			Depth:      alt.Depth,
			Source:     string(alt.Source),
		})
	}
	for _, name := range results.Keys() {
		doc.Results = append(doc.Results, Bucket{Connector: name, Offers: results.Get(name)})
	}
	return doc
}

// Write выгружает запуск в выбранном формате
func Write(w io.Writer, search *models.Search, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(search)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(search)); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(NewDocument(search))
	case FormatCSV:
		return writeCSV(w, search)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

var csvHeader = []string{
	"connector", "part_number", "manufacturer", "description", "condition",
	"price", "currency", "quantity", "seller", "url",
	"is_alternative", "alternative_of", "depth", "fetched_at",
}

// writeCSV пишет одну строку на предложение в порядке ключей
func writeCSV(w io.Writer, search *models.Search) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	if search.Results != nil {
		for _, name := range search.Results.Keys() {
			for _, o := range search.Results.Get(name) {
				record := []string{
					string(name),
					o.PartNumber,
					o.Manufacturer,
					o.Description,
					o.Condition,
					strconv.FormatFloat(o.Price, 'f', -1, 64),
					o.Currency,
					strconv.Itoa(o.Quantity),
					o.Seller,
					o.URL,
					strconv.FormatBool(o.IsAlternative),
					o.AlternativeOf,
					strconv.Itoa(o.Depth),
					formatTime(o.FetchedAt),
				}
				if err := cw.Write(record); err != nil {
					return err
				}
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
