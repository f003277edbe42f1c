package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
	pkgerrors "github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"golang.org/x/sync/errgroup"
)

// AlternativesProvider источник альтернативных артикулов
type AlternativesProvider interface {
	Name() models.ConnectorName
	Alternatives(ctx context.Context, partNumber string) ([]string, error)
}

// Discoverer обходит граф альтернатив в ширину
type Discoverer struct {
	providers   []AlternativesProvider
	memo        interfaces.CachePort
	memoTTL     time.Duration
	concurrency int
	logger      interfaces.LoggerPort
}

// NewDiscoverer создает обходчик; memo может быть nil
func NewDiscoverer(providers []AlternativesProvider, memo interfaces.CachePort, memoTTL time.Duration, concurrency int, logger interfaces.LoggerPort) *Discoverer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Discoverer{
		providers:   providers,
		memo:        memo,
		memoTTL:     memoTTL,
		concurrency: concurrency,
		logger:      logger,
	}
}

// maxDepth переводит nestedLevel в число уровней обхода; -1 означает без ограничения
func maxDepth(nestedLevel int) int {
	if nestedLevel < 0 {
		return -1
	}
	return nestedLevel + 1
}

func partKey(part string) string {
	return strings.ToUpper(strings.TrimSpace(part))
}

type lookupResult struct {
	provider models.ConnectorName
	parts    []string
	err      error
}

// Discover находит альтернативы root до глубины nestedLevel.
// Уровень 1 - прямые альтернативы root. Каждый артикул возвращается не более одного раза,
// поэтому обход завершается и на графах с циклами.
func (d *Discoverer) Discover(ctx context.Context, root string, nestedLevel, maxAlternatives int) ([]models.Alternative, models.DiscoveryStats, error) {
	started := time.Now()
	stats := models.DiscoveryStats{}

	if nestedLevel < models.UnlimitedNestedLevel {
		return nil, stats, fmt.Errorf("discover alternatives: %d: %w", nestedLevel, utils.ErrInvalidNestedLevel)
	}

	limit := maxDepth(nestedLevel)
	visited := map[string]struct{}{partKey(root): {}}
	found := []models.Alternative{}
	frontier := []string{strings.TrimSpace(root)}

	for depth := 1; len(frontier) > 0 && (limit < 0 || depth <= limit); depth++ {
		if err := ctx.Err(); err != nil {
			stats.NodesVisited = len(visited)
			stats.Duration = time.Since(started)
			return found, stats, err
		}

		lookups, err := d.lookupLevel(ctx, frontier)
		if err != nil {
			stats.NodesVisited = len(visited)
			stats.Duration = time.Since(started)
			return found, stats, err
		}

		var next []string
		for i, parent := range frontier {
			for _, res := range lookups[i] {
				if res.err != nil {
					stats.Errors++
					d.logger.WarnWithContext(ctx, "Ошибка получения альтернатив",
						interfaces.LogField{Key: "connector", Value: string(res.provider)},
						interfaces.LogField{Key: "part_number", Value: parent},
						interfaces.LogField{Key: "error", Value: res.err.Error()},
					)
					continue
				}
				for _, part := range res.parts {
					part = strings.TrimSpace(part)
					key := partKey(part)
					if key == "" {
						continue
					}
					if _, seen := visited[key]; seen {
						continue
					}
					visited[key] = struct{}{}

					found = append(found, models.Alternative{
						PartNumber: part,
						Parent:     parent,
						Depth:      depth,
						Source:     res.provider,
					})
					next = append(next, part)
					stats.Levels = depth

					if maxAlternatives > 0 && len(found) >= maxAlternatives {
						stats.Truncated = true
						stats.NodesVisited = len(visited)
						stats.Duration = time.Since(started)
						return found, stats, nil
					}
				}
			}
		}
		frontier = next
	}

	stats.NodesVisited = len(visited)
	stats.Duration = time.Since(started)
	return found, stats, nil
}

// lookupLevel опрашивает всех провайдеров для каждого артикула уровня.
// Порядок результатов совпадает с порядком frontier и providers.
func (d *Discoverer) lookupLevel(ctx context.Context, frontier []string) ([][]lookupResult, error) {
	out := make([][]lookupResult, len(frontier))
	for i := range out {
		out[i] = make([]lookupResult, len(d.providers))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, parent := range frontier {
		for j, provider := range d.providers {
			g.Go(func() error {
				parts, err := d.lookup(gctx, provider, parent)
				out[i][j] = lookupResult{provider: provider.Name(), parts: parts, err: err}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

// lookup запрашивает альтернативы с мемоизацией успешных ответов
func (d *Discoverer) lookup(ctx context.Context, provider AlternativesProvider, part string) ([]string, error) {
	key := fmt.Sprintf("alt:%s:%s", provider.Name(), partKey(part))

	if d.memo != nil {
		if data, err := d.memo.Get(ctx, key); err == nil {
			var parts []string
			if jsonErr := json.Unmarshal(data, &parts); jsonErr == nil {
				return parts, nil
			}
		} else if !errors.Is(err, pkgerrors.ErrCacheMiss) {
			d.logger.DebugWithContext(ctx, "Ошибка чтения кэша альтернатив",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	parts, err := provider.Alternatives(ctx, part)
	if err != nil {
		return nil, err
	}

	if d.memo != nil {
		if data, jsonErr := json.Marshal(parts); jsonErr == nil {
			_ = d.memo.Set(ctx, key, data, d.memoTTL)
		}
	}
	return parts, nil
}
