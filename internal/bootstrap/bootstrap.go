// Package bootstrap wires the whole server: configuration, logging,
// storage, the synthesis domain, and the HTTP transport, with a
// graceful shutdown path.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"voiceweave-server-go/internal/domain/artifact"
	"voiceweave-server-go/internal/domain/cache"
	"voiceweave-server-go/internal/domain/eventbus"
	"voiceweave-server-go/internal/domain/job"
	"voiceweave-server-go/internal/domain/pipeline"
	"voiceweave-server-go/internal/domain/tts"
	platformconfig "voiceweave-server-go/internal/platform/config"
	platformerrors "voiceweave-server-go/internal/platform/errors"
	platformlogging "voiceweave-server-go/internal/platform/logging"
	platformstorage "voiceweave-server-go/internal/platform/storage"
	httptransport "voiceweave-server-go/internal/transport/http"
	httpspeech "voiceweave-server-go/internal/transport/http/speech"

	// Provider adapters register themselves with the tts registry.
	_ "voiceweave-server-go/internal/domain/tts/edge"
	_ "voiceweave-server-go/internal/domain/tts/openai"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger
	cacheStore *cache.Store
	provider   tts.Provider
	jobs       job.Store
	artifacts  *artifact.Store
	pipeline   *pipeline.Pipeline
}

// Run starts the full service lifecycle: configuration loading,
// dependency initialisation, the HTTP server, and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	logger := state.logger
	if state.config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}

	defer func() {
		if state.jobs != nil {
			if err := state.jobs.Close(context.Background()); err != nil {
				logger.ErrorTag("JOB", "job store did not close cleanly: %v", err)
			}
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("BOOT", "server stopped")
	logger.Close()
	return nil
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if stderrors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the initialisation steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise cache index database",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "cache:init-store",
			Title:     "Initialise audio cache",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindCache,
			Execute:   initCacheStep,
		},
		{
			ID:        "tts:init-provider",
			Title:     "Initialise synthesis provider",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindProvider,
			Execute:   initProviderStep,
		},
		{
			ID:        "job:init-store",
			Title:     "Initialise job store",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindJob,
			Execute:   initJobStoreStep,
		},
		{
			ID:        "artifact:init-store",
			Title:     "Initialise artifact store",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindStorage,
			Execute:   initArtifactStep,
		},
		{
			ID:        "pipeline:init",
			Title:     "Initialise synthesis pipeline",
			DependsOn: []string{"cache:init-store", "tts:init-provider"},
			Kind:      platformerrors.KindDomain,
			Execute:   initPipelineStep,
		},
		{
			ID:        "events:subscribe",
			Title:     "Subscribe background handlers",
			DependsOn: []string{"cache:init-store"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   subscribeEventsStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init", "config not loaded")
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init", "failed to initialise logging", err)
	}

	state.logger = logger
	logger.InfoTag("BOOT", "logging ready [%s] config from %s", state.config.Log.Level, state.configPath)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if err := platformstorage.InitDatabase(state.config.Cache.DSN); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialise database", err)
	}
	return nil
}

func initCacheStep(_ context.Context, state *appState) error {
	store, err := cache.NewStore(platformstorage.GetDB(), state.config.Cache.Dir, state.logger)
	if err != nil {
		return err
	}
	state.cacheStore = store
	return nil
}

func initProviderStep(_ context.Context, state *appState) error {
	provider, err := tts.New(state.config, state.logger)
	if err != nil {
		return err
	}
	state.provider = provider
	state.logger.InfoTag("BOOT", "tts provider ready: %s", state.config.TTS.Provider)
	return nil
}

func initJobStoreStep(_ context.Context, state *appState) error {
	jobs, err := job.NewStore(state.config.Job)
	if err != nil {
		return err
	}
	state.jobs = jobs
	return nil
}

func initArtifactStep(_ context.Context, state *appState) error {
	store, err := artifact.NewStore(state.config.Output.Dir, state.logger)
	if err != nil {
		return err
	}
	state.artifacts = store
	return nil
}

func initPipelineStep(_ context.Context, state *appState) error {
	state.pipeline = pipeline.New(pipeline.Options{
		Provider:   state.provider,
		Cache:      state.cacheStore,
		SampleRate: state.config.TTS.SampleRate,
		Logger:     state.logger,
	})
	return nil
}

// subscribeEventsStep hooks opportunistic cache eviction to the end of
// every synthesis request, so the cache never needs a dedicated timer.
func subscribeEventsStep(_ context.Context, state *appState) error {
	cfg := state.config.Cache
	store := state.cacheStore
	logger := state.logger

	return eventbus.SubscribeAsync(eventbus.TopicSynthesisCompleted, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := store.Evict(ctx, cfg.MaxAge, cfg.MaxTotalMB*1024*1024); err != nil {
			logger.WarnTag("CACHE", "eviction failed: %v", err)
		}
	})
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{},
				Message: "api not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.File("./web/index.html")
	})

	speechService, err := httpspeech.NewService(
		config,
		state.pipeline,
		state.provider,
		state.jobs,
		state.artifacts,
		logger,
	)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "speech:new-service", "failed to create speech service", err)
	}
	if err := speechService.Register(groupCtx, httpRouter.API); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "speech:register", "failed to register speech routes", err)
	}

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "server listening on http://%s", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server shut down cleanly")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutdown signal received: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out, forcing exit")
		return stderrors.New("shutdown timed out")
	}
	return nil
}
