package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/adapters/messaging"
	"github.com/athebyme/gomarket-sourcing/internal/adapters/storage"
	"github.com/athebyme/gomarket-sourcing/internal/connectors"
	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/utils"
	pkgerrors "github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	pkgmodels "github.com/athebyme/gomarket-sourcing/pkg/models"
	"github.com/athebyme/gomarket-sourcing/pkg/tx"
	pkgutils "github.com/athebyme/gomarket-sourcing/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ConnectorCatalog выбирает коннекторы для запуска.
// Альтернативы ищутся через все включенные источники, а не только через выбранные для предложений
type ConnectorCatalog interface {
	Select(names []models.ConnectorName) ([]connectors.Connector, error)
	AlternativeSources() []connectors.AlternativesSource
}

// SearchConfig параметры выполнения поиска
type SearchConfig struct {
	Concurrency      int
	ConnectorTimeout time.Duration
	CacheTTL         time.Duration
	MemoTTL          time.Duration
	LockTTL          time.Duration
	RequestsTopic    string
	EventsTopic      string
}

func (c SearchConfig) withDefaults() SearchConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 8
	}
	if c.ConnectorTimeout <= 0 {
		c.ConnectorTimeout = 20 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 15 * time.Minute
	}
	if c.MemoTTL <= 0 {
		c.MemoTTL = time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	if c.RequestsTopic == "" {
		c.RequestsTopic = messaging.SearchRequestsTopic
	}
	if c.EventsTopic == "" {
		c.EventsTopic = messaging.SearchEventsTopic
	}
	return c
}

// SearchDeps зависимости сервиса; Storage, Cache, Memo и Messaging необязательны
type SearchDeps struct {
	Catalog   ConnectorCatalog
	Storage   storage.SearchStorage
	TxManager tx.TxManager
	Cache     interfaces.CachePort
	Memo      interfaces.CachePort
	Messaging interfaces.MessagingPort
	Metrics   *Metrics
	Logger    interfaces.LoggerPort
}

// SearchService выполняет поиск предложений по всем коннекторам
type SearchService struct {
	catalog   ConnectorCatalog
	storage   storage.SearchStorage
	txManager tx.TxManager
	cache     interfaces.CachePort
	memo      interfaces.CachePort
	bus       interfaces.MessagingPort
	metrics   *Metrics
	logger    interfaces.LoggerPort
	cfg       SearchConfig
	newID     func() string
}

// NewSearchService создает новый экземпляр SearchService
func NewSearchService(deps SearchDeps, cfg SearchConfig) *SearchService {
	txManager := deps.TxManager
	if txManager == nil {
		txManager = tx.NopManager{}
	}
	return &SearchService{
		catalog:   deps.Catalog,
		storage:   deps.Storage,
		txManager: txManager,
		cache:     deps.Cache,
		memo:      deps.Memo,
		bus:       deps.Messaging,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       cfg.withDefaults(),
		newID:     func() string { return uuid.New().String() },
	}
}

// Run выполняет поиск синхронно
func (s *SearchService) Run(ctx context.Context, opts models.SearchOptions) (*models.Search, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.selectConnectors(opts); err != nil {
		return nil, err
	}

	search := models.NewSearch(s.newID(), opts)
	ctx = context.WithValue(ctx, interfaces.SearchIDKey, search.ID)

	if err := s.execute(ctx, search); err != nil {
		return search, err
	}
	return search, nil
}

// Enqueue сохраняет запуск в состоянии pending и отправляет его в очередь
func (s *SearchService) Enqueue(ctx context.Context, opts models.SearchOptions) (*models.Search, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, utils.ErrStorageNotAvailable
	}
	if s.bus == nil {
		return nil, utils.ErrQueueNotAvailable
	}
	if _, err := s.selectConnectors(opts); err != nil {
		return nil, err
	}

	search := models.NewSearch(s.newID(), opts)
	ctx = context.WithValue(ctx, interfaces.SearchIDKey, search.ID)

	if err := s.storage.SaveSearch(ctx, search); err != nil {
		return nil, fmt.Errorf("failed to save search: %w", err)
	}

	payload, err := messaging.NewSearchEvent(messaging.SearchRequestedEvent, search).Marshal()
	if err == nil {
		err = s.bus.PublishWithKey(ctx, s.cfg.RequestsTopic, search.ID, payload)
	}
	if err != nil {
		search.Status = models.SearchFailed
		search.Failure = "enqueue: " + err.Error()
		now := time.Now().UTC()
		search.FinishedAt = &now
		if saveErr := s.storage.SaveSearch(ctx, search); saveErr != nil {
			s.logger.ErrorWithContext(ctx, "Не удалось сохранить статус запуска",
				interfaces.LogField{Key: "error", Value: saveErr.Error()})
		}
		return nil, fmt.Errorf("%w: failed to publish search request: %w", utils.ErrQueueNotAvailable, err)
	}

	s.logger.InfoWithContext(ctx, "Запуск поставлен в очередь",
		interfaces.LogField{Key: "part_number", Value: opts.PartNumber})
	return search, nil
}

// Process выполняет ранее поставленный в очередь запуск
func (s *SearchService) Process(ctx context.Context, searchID string) (*models.Search, error) {
	if s.storage == nil {
		return nil, utils.ErrStorageNotAvailable
	}
	ctx = context.WithValue(ctx, interfaces.SearchIDKey, searchID)

	if s.cache != nil {
		lockKey := "lock:search:" + searchID
		locked, err := s.cache.Lock(ctx, lockKey, s.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to lock search: %w", err)
		}
		if !locked {
			return nil, utils.ErrSearchLocked
		}
		defer func() {
			if err := s.cache.Unlock(context.WithoutCancel(ctx), lockKey); err != nil && !errors.Is(err, pkgerrors.ErrLockNotHeld) {
				s.logger.WarnWithContext(ctx, "Не удалось снять блокировку запуска",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	search, err := s.storage.GetSearch(ctx, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	if search == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrSearchNotFound, searchID)
	}
	if search.Status != models.SearchPending {
		return search, fmt.Errorf("%w: %s is %s", utils.ErrSearchNotPending, searchID, search.Status)
	}
	if search.Results == nil {
		search.Results = models.NewResults()
	}
	if search.Errors == nil {
		search.Errors = make(map[models.ConnectorName]string)
	}

	if err := s.execute(ctx, search); err != nil {
		return search, err
	}
	return search, nil
}

// HandleSearchRequest обработчик сообщений очереди запросов
func (s *SearchService) HandleSearchRequest(ctx context.Context, msg *interfaces.Message) error {
	ev, err := messaging.DecodeSearchEvent(msg.Value)
	if err != nil {
		s.logger.WarnWithContext(ctx, "Некорректное сообщение в очереди",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return nil
	}

	_, err = s.Process(ctx, ev.SearchID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, utils.ErrSearchNotFound), errors.Is(err, utils.ErrSearchNotPending), errors.Is(err, utils.ErrSearchLocked):
		// повторная доставка или запуск уже обрабатывается
		s.logger.InfoWithContext(ctx, "Сообщение пропущено",
			interfaces.LogField{Key: "search_id", Value: ev.SearchID},
			interfaces.LogField{Key: "reason", Value: err.Error()})
		return nil
	default:
		return err
	}
}

// Get возвращает запуск по ID
func (s *SearchService) Get(ctx context.Context, searchID string) (*models.Search, error) {
	if s.storage == nil {
		return nil, utils.ErrStorageNotAvailable
	}
	search, err := s.storage.GetSearch(ctx, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	if search == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrSearchNotFound, searchID)
	}
	return search, nil
}

// List возвращает страницу запусков, новые первыми
func (s *SearchService) List(ctx context.Context, page, pageSize int) ([]*models.SearchSummary, *pkgutils.Pagination, error) {
	if s.storage == nil {
		return nil, nil, utils.ErrStorageNotAvailable
	}
	pagination := pkgutils.NewPagination(page, pageSize)

	items, total, err := s.storage.ListSearches(ctx, pagination.Page, pagination.PageSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list searches: %w", err)
	}
	pagination.SetTotal(int64(total))
	return items, pagination, nil
}

func (s *SearchService) selectConnectors(opts models.SearchOptions) ([]connectors.Connector, error) {
	conns, err := s.catalog.Select(opts.Connectors)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return nil, utils.ErrNoConnectors
	}
	return conns, nil
}

// execute выполняет запуск и сохраняет итог; возвращает только ошибки сохранения и отмены
func (s *SearchService) execute(ctx context.Context, search *models.Search) error {
	opts := search.Options
	search.Status = models.SearchRunning

	if !opts.NoCache && s.loadCached(ctx, search) {
		return s.finish(ctx, search)
	}

	s.logger.InfoWithContext(ctx, "Запуск поиска",
		interfaces.LogField{Key: "part_number", Value: opts.PartNumber},
		interfaces.LogField{Key: "use_alternatives", Value: opts.UseAlternatives},
		interfaces.LogField{Key: "nested_level", Value: opts.NestedLevel},
	)

	conns, err := s.selectConnectors(opts)
	if err != nil {
		search.Status = models.SearchFailed
		search.Failure = err.Error()
		return s.finish(ctx, search)
	}

	targets := []searchTarget{{part: opts.PartNumber}}

	if opts.UseAlternatives {
		providers := alternativeProviders(s.catalog.AlternativeSources())
		if len(providers) > 0 {
			discoverer := NewDiscoverer(providers, s.memo, s.cfg.MemoTTL, s.cfg.Concurrency, s.logger)
			alts, stats, err := discoverer.Discover(ctx, opts.PartNumber, opts.NestedLevel, opts.MaxAlternatives)
			search.Alternatives = alts
			search.Discovery = stats
			if err != nil {
				search.Status = models.SearchFailed
				search.Failure = "discover alternatives: " + err.Error()
				return s.finish(context.WithoutCancel(ctx), search)
			}
			if s.metrics != nil {
				s.metrics.AlternativesFound.Add(float64(len(alts)))
			}
			for _, alt := range alts {
				targets = append(targets, searchTarget{part: alt.PartNumber, alt: &alt})
			}
		}
	}

	s.fanOut(ctx, search, conns, targets)

	if err := ctx.Err(); err != nil {
		search.Status = models.SearchFailed
		search.Failure = err.Error()
		return s.finish(context.WithoutCancel(ctx), search)
	}
	return s.finish(ctx, search)
}

type searchTarget struct {
	part string
	alt  *models.Alternative
}

type callResult struct {
	offers []pkgmodels.Offer
	err    error
}

func alternativeProviders(sources []connectors.AlternativesSource) []AlternativesProvider {
	out := make([]AlternativesProvider, len(sources))
	for i, src := range sources {
		out[i] = src
	}
	return out
}

// fanOut опрашивает каждый коннектор по каждому артикулу.
// Предложения добавляются в порядке артикулов: сначала исходный, затем альтернативы в порядке обнаружения.
func (s *SearchService) fanOut(ctx context.Context, search *models.Search, conns []connectors.Connector, targets []searchTarget) {
	calls := make([][]callResult, len(targets))
	for i := range calls {
		calls[i] = make([]callResult, len(conns))
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i, target := range targets {
		for j, conn := range conns {
			g.Go(func() error {
				calls[i][j] = s.call(ctx, conn, target.part)
				return nil
			})
		}
	}
	_ = g.Wait()

	failures := make(map[models.ConnectorName]int, len(conns))
	for i, target := range targets {
		for j, conn := range conns {
			res := calls[i][j]
			name := conn.Name()
			if res.err != nil {
				failures[name]++
				if _, seen := search.Errors[name]; !seen {
					search.Errors[name] = fmt.Sprintf("%s: %s", target.part, res.err.Error())
				}
				continue
			}

			offers := res.offers
			if target.alt != nil {
				for k := range offers {
					offers[k].IsAlternative = true
					offers[k].AlternativeOf = target.alt.Parent
					offers[k].Depth = target.alt.Depth
				}
			}
			if err := search.Results.Append(name, offers...); err != nil {
				s.logger.ErrorWithContext(ctx, "Не удалось добавить предложения",
					interfaces.LogField{Key: "connector", Value: string(name)},
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}
	}

	failedAll := len(conns) > 0
	for _, conn := range conns {
		if failures[conn.Name()] < len(targets) {
			failedAll = false
			break
		}
	}

	switch {
	case failedAll:
		search.Status = models.SearchFailed
		search.Failure = "all connectors failed"
	case len(search.Errors) > 0 || search.Discovery.Errors > 0:
		search.Status = models.SearchPartial
	default:
		search.Status = models.SearchCompleted
	}
}

// call выполняет один запрос к коннектору с таймаутом
func (s *SearchService) call(ctx context.Context, conn connectors.Connector, part string) callResult {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectorTimeout)
	defer cancel()

	started := time.Now()
	offers, err := conn.Search(callCtx, part)
	elapsed := time.Since(started)

	name := string(conn.Name())
	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.ConnectorRequests.WithLabelValues(name, outcome).Inc()
		s.metrics.ConnectorDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}

	if err != nil {
		s.logger.WarnWithContext(ctx, "Ошибка запроса к коннектору",
			interfaces.LogField{Key: "connector", Value: name},
			interfaces.LogField{Key: "part_number", Value: part},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return callResult{err: err}
	}
	return callResult{offers: offers}
}

// cachedSearch часть запуска, которая хранится в кэше
type cachedSearch struct {
	Status       models.SearchStatus             `json:"status"`
	Results      *models.Results                 `json:"results"`
	Alternatives []models.Alternative            `json:"alternatives"`
	Discovery    models.DiscoveryStats           `json:"discovery"`
	Errors       map[models.ConnectorName]string `json:"errors"`
}

func (s *SearchService) loadCached(ctx context.Context, search *models.Search) bool {
	if s.cache == nil {
		return false
	}

	data, err := s.cache.Get(ctx, search.Options.CacheKey())
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrCacheMiss) {
			s.logger.WarnWithContext(ctx, "Ошибка чтения кэша поиска",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		return false
	}

	var cached cachedSearch
	if err := json.Unmarshal(data, &cached); err != nil || cached.Results == nil {
		s.logger.WarnWithContext(ctx, "Поврежденная запись кэша поиска")
		return false
	}

	search.Status = cached.Status
	search.Results = cached.Results
	search.Alternatives = cached.Alternatives
	search.Discovery = cached.Discovery
	if cached.Errors != nil {
		search.Errors = cached.Errors
	}
	search.CacheHit = true
	if s.metrics != nil {
		s.metrics.CacheHits.Inc()
	}
	return true
}

func (s *SearchService) storeCached(ctx context.Context, search *models.Search) {
	data, err := json.Marshal(cachedSearch{
		Status:       search.Status,
		Results:      search.Results,
		Alternatives: search.Alternatives,
		Discovery:    search.Discovery,
		Errors:       search.Errors,
	})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, search.Options.CacheKey(), data, s.cfg.CacheTTL); err != nil {
		s.logger.WarnWithContext(ctx, "Ошибка записи кэша поиска",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

// finish фиксирует итог запуска: сохранение, кэш, событие
func (s *SearchService) finish(ctx context.Context, search *models.Search) error {
	now := time.Now().UTC()
	search.FinishedAt = &now

	if s.metrics != nil {
		s.metrics.Searches.WithLabelValues(string(search.Status)).Inc()
	}

	if s.storage != nil {
		err := s.txManager.Do(ctx, func(ctx context.Context) error {
			if err := s.storage.SaveSearch(ctx, search); err != nil {
				return err
			}
			return s.storage.SaveOffers(ctx, search.ID, search.Results)
		})
		if err != nil {
			return fmt.Errorf("failed to persist search: %w", err)
		}
	}

	if s.cache != nil && !search.CacheHit && search.Status == models.SearchCompleted && !search.Options.NoCache {
		s.storeCached(ctx, search)
	}

	eventType := messaging.SearchCompletedEvent
	if search.Status == models.SearchFailed {
		eventType = messaging.SearchFailedEvent
	}
	s.publish(ctx, eventType, search)

	s.logger.InfoWithContext(ctx, "Поиск завершен",
		interfaces.LogField{Key: "status", Value: string(search.Status)},
		interfaces.LogField{Key: "offers", Value: search.Results.Total()},
		interfaces.LogField{Key: "alternatives", Value: len(search.Alternatives)},
		interfaces.LogField{Key: "cache_hit", Value: search.CacheHit},
	)
	return nil
}

func (s *SearchService) publish(ctx context.Context, eventType messaging.EventType, search *models.Search) {
	if s.bus == nil {
		return
	}
	ev := messaging.NewSearchEvent(eventType, search)
	ev.Error = search.Failure

	payload, err := ev.Marshal()
	if err == nil {
		err = s.bus.PublishWithKey(ctx, s.cfg.EventsTopic, search.ID, payload)
	}
	if err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие",
			interfaces.LogField{Key: "event", Value: eventType},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}
