// Package engine is the composition root: it builds the backend registry,
// dispatcher, retry manager, config store, and history store and wires
// them together the way a CLI root command builds a single shared HTTP
// client and hands it to every subcommand.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/backend/gitcontent"
	"github.com/picdock/engine/internal/backend/s3family"
	"github.com/picdock/engine/internal/backend/socialcookie"
	"github.com/picdock/engine/internal/backend/tokenauth"
	"github.com/picdock/engine/internal/config"
	"github.com/picdock/engine/internal/dispatcher"
	"github.com/picdock/engine/internal/history"
	"github.com/picdock/engine/internal/metrics"
	"github.com/picdock/engine/internal/model"
	"github.com/picdock/engine/internal/retry"
	"github.com/picdock/engine/internal/sidecar"
)

// HTTP client tuning shared by every backend: 10 idle connections per
// host, 90s idle timeout, 60s request timeout, 10s connect timeout.
const (
	connectTimeout   = 10 * time.Second
	requestTimeout   = 60 * time.Second
	idleConnTimeout  = 90 * time.Second
	maxIdleConnsHost = 10
)

// Engine bundles every long-lived component a CLI command needs.
type Engine struct {
	Config     *config.Store
	History    *history.Store
	Registry   *backend.Registry
	Dispatcher *dispatcher.Dispatcher
	Retry      *retry.Manager
	Metrics    *metrics.Metrics
	Sidecar    *sidecar.Client

	httpClient *http.Client
}

// Options configures Open.
type Options struct {
	ConfigPath  string
	KeyPath     string
	HistoryPath string
	FetcherPath string
	Logger      *slog.Logger
}

// Open builds a fully-wired Engine. The caller must call Close when done.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := sharedHTTPClient()

	historyStore, err := history.Open(ctx, opts.HistoryPath, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: opening history store: %w", err)
	}

	configStore := config.Open(opts.ConfigPath, opts.KeyPath, logger)

	m := metrics.New()

	sc := sidecar.NewClient(opts.FetcherPath)

	registry := buildRegistry(httpClient, sc)

	d := dispatcher.New(registry).WithMetrics(m)

	prechecker := retry.NewHTTPPrechecker(httpClient)
	retryMgr := retry.NewManager(historyStore, d, registry, prechecker, retry.DefaultMaxRetries).WithMetrics(m)

	return &Engine{
		Config:     configStore,
		History:    historyStore,
		Registry:   registry,
		Dispatcher: d,
		Retry:      retryMgr,
		Metrics:    m,
		Sidecar:    sc,
		httpClient: httpClient,
	}, nil
}

// Close releases the history database handle. The config store's writer
// goroutine and the HTTP client's idle connections are released the same way.
func (e *Engine) Close() {
	e.History.Close()
	e.Config.Close()
	e.httpClient.CloseIdleConnections()
}

func sharedHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: maxIdleConnsHost,
		IdleConnTimeout:     idleConnTimeout,
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
	}

	return &http.Client{Transport: transport, Timeout: requestTimeout}
}

// sidecarTokenFetcher adapts sidecar.Client's (TokenResult, error) return
// shape onto tokenauth.TokenFetcher's (token, expiresMs, error) shape.
type sidecarTokenFetcher struct {
	client *sidecar.Client
}

func (f sidecarTokenFetcher) FetchToken(ctx context.Context, id model.BackendID, cfg model.BackendConfig) (string, int64, error) {
	result, err := f.client.FetchToken(ctx, id, cfg)
	if err != nil {
		return "", 0, err
	}

	return result.Token, result.ExpiresMs, nil
}

func buildRegistry(httpClient *http.Client, sc *sidecar.Client) *backend.Registry {
	reg := backend.NewRegistry()

	s3Backends := []model.BackendID{
		model.BackendR2, model.BackendTencent, model.BackendAliyun, model.BackendQiniu,
	}
	for _, id := range s3Backends {
		id := id
		reg.Register(id, func() backend.IBackend { return s3family.New(id) })
	}

	// Upyun is registered separately: its REST API uses a service-native
	// sign-authentication scheme rather than AWS SigV4 (spec §4.1), so it
	// gets its own plain-HTTP IBackend implementation instead of the
	// aws-sdk-go-v2 client the rest of s3family shares.
	reg.Register(model.BackendUpyun, func() backend.IBackend { return s3family.NewUpyun(httpClient) })

	cookieBackends := []model.BackendID{
		model.BackendWeibo, model.BackendNowcoder, model.BackendZhihu, model.BackendBilibili,
		model.BackendChaoxing, model.BackendNami, model.BackendSmms, model.BackendImgur, model.BackendJD,
	}
	for _, id := range cookieBackends {
		id := id
		reg.Register(id, func() backend.IBackend { return socialcookie.New(id, httpClient) })
	}

	fetcher := sidecarTokenFetcher{client: sc}
	reg.Register(model.BackendQiyu, func() backend.IBackend {
		return tokenauth.New(model.BackendQiyu, httpClient, fetcher)
	})

	reg.Register(model.BackendGithub, func() backend.IBackend {
		return gitcontent.New(httpClient)
	})

	return reg
}
