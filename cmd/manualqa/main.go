package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/manualqa/internal/config"
	dbRedis "github.com/kailas-cloud/manualqa/internal/db/redis"
	domindex "github.com/kailas-cloud/manualqa/internal/domain/index"
	logpkg "github.com/kailas-cloud/manualqa/internal/logger"
	"github.com/kailas-cloud/manualqa/internal/metrics"
	budgetrepo "github.com/kailas-cloud/manualqa/internal/repository/budget"
	chiTransport "github.com/kailas-cloud/manualqa/internal/transport/chi"
	"github.com/kailas-cloud/manualqa/internal/transport/console"
	openaiTransport "github.com/kailas-cloud/manualqa/internal/transport/openai"
	pdfTransport "github.com/kailas-cloud/manualqa/internal/transport/pdf"
	answeruc "github.com/kailas-cloud/manualqa/internal/usecase/answer"
	chatuc "github.com/kailas-cloud/manualqa/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/manualqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/manualqa/internal/usecase/health"
	indexuc "github.com/kailas-cloud/manualqa/internal/usecase/index"
	retrieveuc "github.com/kailas-cloud/manualqa/internal/usecase/retrieve"
	usageuc "github.com/kailas-cloud/manualqa/internal/usecase/usage"
	"github.com/kailas-cloud/manualqa/internal/version"
)

const (
	modeChat  = "chat"
	modeServe = "serve"
	modeBoth  = "both"
)

func runsHTTP(mode string) bool    { return mode == modeServe || mode == modeBoth }
func runsConsole(mode string) bool { return mode == modeChat || mode == modeBoth }

func main() {
	mode := flag.String("mode", modeChat, "run mode: chat (console only), serve (HTTP only) or both")
	configPath := flag.String("config", "", "config file (default config/<ENV>.yaml)")
	verbose := flag.Bool("verbose", false, "print matched chunks and scores before each answer")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	switch *mode {
	case modeChat, modeServe, modeBoth:
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q: want chat, serve or both\n", *mode)
		os.Exit(2)
	}

	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if runsHTTP(*mode) && !cfg.HTTP.Enabled {
		cfg.HTTP.Enabled = true
		cfg.ApplyDefaults()
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting manualqa",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("mode", *mode),
		zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		zap.String("completion_model", cfg.OpenAI.CompletionModel),
		zap.Float64("similarity_threshold", cfg.Retrieval.Threshold()),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional Redis for budget persistence. Pass nil interfaces, never typed nil pointers.
	var (
		budgetStore embeddinguc.BudgetStore
		dbPinger    healthuc.DBPinger
	)
	if len(cfg.Database.Addrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

		budgetStore = budgetrepo.New(store, 0, 0)
		dbPinger = store
	}

	// Single BudgetTracker shared by the embedder chain and the usage service.
	var (
		budget        *embeddinguc.BudgetTracker
		budgetChecker embeddinguc.BudgetChecker
		budgetReader  usageuc.BudgetReader
	)
	if cfg.Budget.DailyTokenLimit > 0 || cfg.Budget.MonthlyTokenLimit > 0 || budgetStore != nil {
		budget = embeddinguc.NewBudgetTracker(
			cfg.OpenAI.EmbeddingModel,
			cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit,
			embeddinguc.ParseBudgetAction(cfg.Budget.Action), logger,
		)
		if budgetStore != nil {
			budget.WithStore(ctx, budgetStore)
		}
		budgetChecker = budget
		budgetReader = budget
	}

	timeout := time.Duration(cfg.OpenAI.RequestTimeoutSec) * time.Second
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		Dimensions: cfg.OpenAI.EmbeddingDimensions,
		Timeout:    timeout,
		Logger:     logger,
	})
	embedder := embeddinguc.NewInstrumentedEmbedder(baseEmbedder, baseEmbedder.Model(), budgetChecker, logger)

	var temperature float32
	if cfg.OpenAI.Temperature != nil {
		temperature = float32(*cfg.OpenAI.Temperature)
	}
	completer := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.CompletionModel,
		Temperature: temperature,
		Timeout:     timeout,
		Logger:      logger,
	})

	// Build the vector store once; nothing is answered until every chunk is embedded.
	sources := make([]domindex.Source, len(cfg.Documents))
	for i, d := range cfg.Documents {
		sources[i] = domindex.Source{Path: d.Path, Label: d.Label}
	}
	builder := indexuc.New(pdfTransport.NewExtractor(logger), embedder, embedder.Model(), logger).
		WithChunking(cfg.Chunking.Size, cfg.Chunking.Overlap).
		WithConcurrency(cfg.Indexing.Concurrency, cfg.Indexing.BatchSize)

	store, err := builder.Build(ctx, sources)
	if err != nil {
		logger.Fatal("Failed to build vector store", zap.Error(err))
	}

	chatSvc := chatuc.New(
		store,
		retrieveuc.New(embedder, logger),
		answeruc.New(completer, logger),
		cfg.Retrieval.TopK,
		cfg.Retrieval.Threshold(),
	)

	g, gctx := errgroup.WithContext(ctx)

	// http.enabled in the config is ignored in chat mode.
	if runsHTTP(*mode) {
		server := chiTransport.NewServer(
			chatSvc,
			usageuc.New(budgetReader, embedder.Model()),
			healthuc.New(dbPinger, embedder, store),
			cfg.Auth.APIKeys,
			logger,
		)
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      server.Router(),
			ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}
			logger.Info("HTTP server stopped")
			return nil
		})
	}

	if runsConsole(*mode) {
		fmt.Printf("Loaded %d chunks into memory.\n", store.Len())
		repl := console.New(chatSvc, os.Stdin, os.Stdout, logger).WithVerbose(*verbose)
		g.Go(func() error {
			err := repl.Run(gctx)
			stop()
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("console: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Stopped")
}
