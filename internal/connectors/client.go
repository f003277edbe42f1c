package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// restClient общий HTTP-клиент коннекторов: авторизация, ограничение частоты, JSON
type restClient struct {
	name       string
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    map[string]string
}

func newRESTClient(name string, settings Settings, apiKeyHeader string) (*restClient, error) {
	if settings.BaseURL == "" {
		return nil, fmt.Errorf("%s: base url is empty", name)
	}
	base, err := url.Parse(strings.TrimRight(settings.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", name, err)
	}

	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	// OAuth2 client credentials, если заданы реквизиты
	if settings.ClientID != "" && settings.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			TokenURL:     settings.TokenURL,
			Scopes:       settings.Scopes,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		httpClient = cc.Client(tokenCtx)
		httpClient.Timeout = timeout
	}

	limit := rate.Inf
	if settings.RatePerSecond > 0 {
		limit = rate.Limit(settings.RatePerSecond)
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}

	headers := map[string]string{"Accept": "application/json"}
	if settings.APIKey != "" && apiKeyHeader != "" {
		headers[apiKeyHeader] = settings.APIKey
	}

	return &restClient{
		name:       name,
		baseURL:    base,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		headers:    headers,
	}, nil
}

// getJSON выполняет GET и декодирует тело ответа в out
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", c.name, err)
	}

	u := *c.baseURL
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// источник не знает артикул - это пустой результат, а не ошибка
		_, _ = io.Copy(io.Discard, resp.Body)
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %w: %d %s", c.name, utils.ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}
