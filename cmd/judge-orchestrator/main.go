package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	commonmw "codearena/internal/common/http/middleware"
	"codearena/internal/common/metrics"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	gatewaymw "codearena/internal/gateway/middleware"
	gatewaysvc "codearena/internal/gateway/service"
	"codearena/internal/judge/backend"
	judgecontroller "codearena/internal/judge/controller"
	"codearena/internal/judge/harness"
	judgerepo "codearena/internal/judge/repository"
	judgeservice "codearena/internal/judge/service"
	lbcontroller "codearena/internal/leaderboard/controller"
	lbrepo "codearena/internal/leaderboard/repository"
	lbservice "codearena/internal/leaderboard/service"
	problemrepo "codearena/internal/problem/repository"
	"codearena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge-orchestrator.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", ".env", "Optional env file loaded before the config is expanded")
	flag.Parse()

	if err := loadEnvFile(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	bg := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(bg, "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(bg, "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	queue, err := newQueue(appCfg.Kafka)
	if err != nil {
		logger.Error(bg, "init queue failed", zap.Error(err))
		return
	}
	defer func() {
		_ = queue.Close()
	}()

	var artifacts judgeservice.ArtifactStore
	if appCfg.MinIO.Endpoint != "" {
		store, err := newArtifactStore(bg, appCfg.MinIO)
		if err != nil {
			logger.Error(bg, "init artifact storage failed", zap.Error(err))
			return
		}
		artifacts = store
	} else {
		logger.Warn(bg, "minio endpoint not configured, submission artifacts are not saved")
	}

	templates, err := harness.NewTemplates(appCfg.Harness.TemplateConfig)
	if err != nil {
		logger.Error(bg, "init harness templates failed", zap.Error(err))
		return
	}
	dispatcher, err := backend.NewDispatcher(appCfg.Backend, nil, m)
	if err != nil {
		logger.Error(bg, "init backend dispatcher failed", zap.Error(err))
		return
	}

	jobRepo := judgerepo.NewMySQLJobRepository(mysqlDB, redisCache, appCfg.Jobs.CacheTTL)
	problems := problemrepo.NewFallbackRepository(problemrepo.NewMySQLProblemRepository(mysqlDB), problemrepo.DefaultProblems())
	publisher := judgerepo.NewMQEventPublisher(queue, appCfg.Kafka.DispatchTopic, appCfg.Kafka.LeaderboardTopic)

	jobSvc, err := judgeservice.NewJobService(judgeservice.Config{
		Jobs:           jobRepo,
		Problems:       problems,
		Wrapper:        harness.NewWrapper(templates, appCfg.Harness.MaxCodeBytes),
		Dispatcher:     dispatcher,
		Publisher:      publisher,
		Artifacts:      artifacts,
		PollLock:       judgerepo.NewPollLock(redisCache, appCfg.Jobs.PollLockTTL),
		Queue:          queue,
		Metrics:        m,
		Round:          appCfg.Leaderboard.Round,
		StoreTimeout:   appCfg.Dispatch.StoreTimeout,
		RunningTimeout: appCfg.Dispatch.RunningTimeout,
		PoolSize:       appCfg.Dispatch.PoolSize,
		AcquireTimeout: appCfg.Dispatch.AcquireTimeout,
		Retry:          appCfg.Dispatch.retryPolicy(appCfg.Kafka),
	})
	if err != nil {
		logger.Error(bg, "init job service failed", zap.Error(err))
		return
	}

	entryRepo := lbrepo.NewMySQLEntryRepository(mysqlDB)
	ranking := lbrepo.NewRanking(redisCache, appCfg.Leaderboard.RankingKey)
	aggregator := lbservice.NewAggregator(jobRepo, entryRepo, ranking, appCfg.Leaderboard.Round, m)

	err = queue.SubscribeWithOptions(bg, appCfg.Kafka.DispatchTopic, jobSvc.HandleDispatch, &mq.SubscribeOptions{
		ConsumerGroup:   appCfg.Kafka.ConsumerGroup,
		Concurrency:     appCfg.Dispatch.Concurrency,
		MaxRetries:      appCfg.Dispatch.MaxRetries,
		RetryDelay:      appCfg.Dispatch.RetryDelay,
		DeadLetterTopic: appCfg.Kafka.DeadLetterTopic,
	})
	if err != nil {
		logger.Error(bg, "subscribe dispatch topic failed", zap.Error(err))
		return
	}
	// One handler keeps updates for the same user in publish order.
	err = queue.SubscribeWithOptions(bg, appCfg.Kafka.LeaderboardTopic, aggregator.HandleEvent, &mq.SubscribeOptions{
		ConsumerGroup:   appCfg.Kafka.ConsumerGroup + "-leaderboard",
		Concurrency:     1,
		DeadLetterTopic: appCfg.Kafka.DeadLetterTopic,
	})
	if err != nil {
		logger.Error(bg, "subscribe leaderboard topic failed", zap.Error(err))
		return
	}
	if err := queue.Start(); err != nil {
		logger.Error(bg, "start queue consumers failed", zap.Error(err))
		return
	}

	pollCtx, stopPoller := context.WithCancel(bg)
	poller := judgeservice.NewPoller(jobSvc, jobRepo, appCfg.Poller)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(pollCtx)
	}()

	var rateService *gatewaysvc.RateLimitService
	if appCfg.RateLimit.Submit.Enabled() {
		rateService = gatewaysvc.NewRateLimitService(redisCache, appCfg.RateLimit.Window, appCfg.RateLimit.RedisTimeout)
	}
	deps := routerDeps{
		jobs:     jobSvc,
		board:    lbservice.NewBoard(entryRepo, ranking),
		auth:     gatewaysvc.NewAuthService(appCfg.Auth.JWTSecret, appCfg.Auth.JWTIssuer),
		rate:     rateService,
		health:   []pinger{mysqlDB, redisCache, queue},
		gatherer: registry,
		submit:   appCfg.RateLimit.Submit,
		watch:    appCfg.Watch,
	}
	httpServer := buildHTTPServer(appCfg.Server, deps)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(bg, "init http listener failed", zap.Error(err))
		stopPoller()
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(bg, "judge orchestrator started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Strings("backends", dispatcher.Endpoints()),
			zap.String("round", appCfg.Leaderboard.Round))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(bg, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(bg, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(bg, "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(bg, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(bg, "http server shutdown failed", zap.Error(err))
	}
	stopPoller()
	<-pollerDone
	if err := queue.Stop(); err != nil {
		logger.Error(bg, "stop queue consumers failed", zap.Error(err))
	}
}

func newQueue(cfg KafkaConfig) (mq.MessageQueue, error) {
	brokers := cfg.Brokers[:0:0]
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	cfg.Brokers = brokers
	if len(cfg.Brokers) == 0 {
		logger.Warn(context.Background(), "kafka brokers not configured, using in-process queue")
		return mq.NewMemoryQueue(cfg.MemoryBuffer), nil
	}
	return mq.NewKafkaQueue(cfg.KafkaConfig)
}

func newArtifactStore(ctx context.Context, cfg storage.MinIOConfig) (*judgerepo.ArtifactStore, error) {
	objects, err := storage.NewMinIOStorage(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := objects.EnsureBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}
	return judgerepo.NewArtifactStore(objects, cfg.Bucket)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	jobs     judgecontroller.JobService
	board    lbcontroller.BoardReader
	auth     *gatewaysvc.AuthService
	rate     *gatewaysvc.RateLimitService
	health   []pinger
	gatherer prometheus.Gatherer
	submit   gatewaysvc.SubmitQuota
	watch    judgecontroller.WatchConfig
}

func buildHTTPServer(cfg ServerConfig, deps routerDeps) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.Trace(commonmw.TraceConfig{TrustUserIDHeader: cfg.TrustUserIDHeader}))
	router.Use(commonmw.RequestLogger())

	router.GET("/healthz", healthHandler(deps.health))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	api.Use(gatewaymw.AuthMiddleware(deps.auth))
	submitLimit := gatewaymw.RateLimitMiddleware(deps.rate, "jobs.submit", deps.submit)
	judgecontroller.NewJudgeController(deps.jobs, deps.watch).Register(api, submitLimit)
	lbcontroller.NewLeaderboardController(deps.board).Register(api)

	// No WriteTimeout: watch streams stay open until the job is terminal.
	return &http.Server{
		Addr:        cfg.Addr,
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}
}

func healthHandler(deps []pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		for _, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn(ctx, "health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
