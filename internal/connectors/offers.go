package connectors

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
)

var errNotFound = errors.New("not found")

// ignoreNotFound превращает 404 источника в пустой результат
func ignoreNotFound(err error) error {
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

func newOffer(name models.ConnectorName, partNumber string) pkgmodels.Offer {
	return pkgmodels.Offer{
		Connector:  string(name),
		PartNumber: strings.TrimSpace(partNumber),
		FetchedAt:  time.Now().UTC(),
	}
}

// parsePrice разбирает цену, которую источник передает строкой ("1,299.00", "$12.50")
func parsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// normalizeCondition приводит состояние товара к new / used / refurbished
func normalizeCondition(s string) string {
	switch c := strings.ToLower(strings.TrimSpace(s)); {
	case c == "":
		return ""
	case strings.HasPrefix(c, "new"), c == "nob", c == "fs", c == "factory sealed":
		return "new"
	case strings.Contains(c, "refurb"), c == "ref":
		return "refurbished"
	case strings.HasPrefix(c, "used"), c == "pre-owned", c == "pull", c == "pulls":
		return "used"
	default:
		return c
	}
}
