package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/quizflow/internal/events"
	"github.com/pavelanni/quizflow/internal/grading"
	"github.com/pavelanni/quizflow/internal/handler"
	"github.com/pavelanni/quizflow/internal/i18n"
	"github.com/pavelanni/quizflow/internal/llm"
	"github.com/pavelanni/quizflow/internal/llm/prompts"
	"github.com/pavelanni/quizflow/internal/metrics"
	"github.com/pavelanni/quizflow/internal/quizgen"
	"github.com/pavelanni/quizflow/internal/store"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the QuizFlow HTTP API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8000", "HTTP listen address")
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "quizflow.db", "SQLite path or Postgres connection URL")
	f.String("llm-provider", "openai", "LLM provider (openai, anthropic, gemini, mock)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the openai provider")
	f.String("llm-model", "llama3.2", "Model name for the openai provider")
	f.String("llm-json-mode", llm.JSONModeObject, "Structured output mode for the openai provider (schema, object)")
	f.String("anthropic-key", "", "Anthropic API key")
	f.String("anthropic-model", "claude-haiku", "Anthropic model name")
	f.String("gemini-key", "", "Gemini API key")
	f.String("gemini-model", "gemini-flash", "Gemini model name")
	f.Int("llm-retries", 3, "Attempts per LLM request on transient errors")
	f.Int("judge-concurrency", 4, "Short answers judged in parallel per submission")
	f.String("prompt-variant", string(prompts.PromptStandard), "Short-answer judging strictness (strict, standard, lenient)")
	f.StringP("lang", "l", "en", "Default language for feedback and recommendations (en, ru)")
	f.IntP("num-questions", "n", quizgen.DefaultNumQuestions, "Questions per generated quiz")
	f.Int("generation-attempts", 2, "Full generations tried when the model returns an invalid quiz")
	f.Int("workers", 4, "Concurrent generation jobs")
	f.Int("queue-size", 64, "Pending generation jobs before new requests are refused")
	f.Duration("generation-timeout", 8*time.Minute, "Time limit for one generation job")
	f.StringSlice("subjects", nil, "Published subjects (default: built-in list)")
	f.StringSlice("cors-origins", []string{"http://localhost:3000", "http://localhost:5173"}, "Allowed CORS origins")
	f.String("amqp-url", "", "RabbitMQ URL for lifecycle events (empty disables)")
	f.String("amqp-exchange", events.DefaultExchange, "RabbitMQ topic exchange")
	addLogFlags(cmd)
	return cmd
}

func llmConfig(v *viper.Viper) llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = strings.ToLower(v.GetString("llm-provider"))
	cfg.OpenAI = llm.OpenAIConfig{
		APIKey:   v.GetString("llm-key"),
		Model:    v.GetString("llm-model"),
		BaseURL:  v.GetString("llm-url"),
		JSONMode: v.GetString("llm-json-mode"),
	}
	cfg.Anthropic = llm.AnthropicConfig{
		APIKey: v.GetString("anthropic-key"),
		Model:  v.GetString("anthropic-model"),
	}
	cfg.Gemini = llm.GeminiConfig{
		APIKey: v.GetString("gemini-key"),
		Model:  v.GetString("gemini-model"),
	}
	if n := v.GetInt("llm-retries"); n > 0 {
		cfg.Retry.MaxAttempts = n
	}
	return cfg
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := i18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.Open(ctx, store.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Jobs do not survive a restart; anything still generating is orphaned.
	recovered, err := db.FailInterrupted(ctx, i18n.T(ctx, "GenerationInterrupted"))
	if err != nil {
		return fmt.Errorf("recover interrupted sessions: %w", err)
	}
	if recovered > 0 {
		slog.Warn("marked interrupted sessions as failed", "count", recovered)
	}
	if err := db.RecordStartup(ctx, time.Now(), recovered); err != nil {
		return fmt.Errorf("record startup: %w", err)
	}

	numQuestions := v.GetInt("num-questions")
	provider, judge, err := newLLM(ctx, v, numQuestions)
	if err != nil {
		return err
	}

	genCfg := quizgen.DefaultConfig()
	genCfg.NumQuestions = numQuestions
	if n := v.GetInt("generation-attempts"); n > 0 {
		genCfg.Attempts = n
	}
	gen, err := quizgen.NewLLMGenerator(provider, genCfg)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	pub, err := events.NewPublisher(v.GetString("amqp-url"), v.GetString("amqp-exchange"))
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer pub.Close()

	runner := quizgen.NewRunner(gen, db, pub, quizgen.RunnerConfig{
		Workers:   v.GetInt("workers"),
		QueueSize: v.GetInt("queue-size"),
		Timeout:   v.GetDuration("generation-timeout"),
	})
	grader := grading.NewService(db, grading.NewEngine(judge, grading.WithJudgeConcurrency(v.GetInt("judge-concurrency"))), pub)

	h := handler.New(db, runner, grader, pub, handler.Config{
		Subjects:         v.GetStringSlice("subjects"),
		Version:          version,
		EstimatedMinutes: quizgen.EstimatedMinutes(numQuestions),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   v.GetStringSlice("cors-origins"),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", handler.UserIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)
	h.Routes(r)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", srv.Addr,
		"version", version,
		"db_driver", db.Driver(),
		"llm_provider", v.GetString("llm-provider"),
		"model", provider.ModelID(),
		"lang", lang,
		"num_questions", numQuestions,
		"workers", v.GetInt("workers"),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		return errors.Join(err, runner.Shutdown(sctx))
	})
	return g.Wait()
}

// newLLM builds the provider and the short-answer judge. The mock provider
// serves demo quizzes and is paired with the keyword judge, so the server
// runs without any model.
func newLLM(ctx context.Context, v *viper.Viper, numQuestions int) (llm.Provider, grading.Judge, error) {
	cfg := llmConfig(v)
	provider, err := llm.NewProvider(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("create LLM provider: %w", err)
	}

	if mock, ok := provider.(*llm.MockProvider); ok {
		mock.Fallback = func(req llm.Request) (json.RawMessage, error) {
			if req.Schema == nil || req.Schema.Name != quizgen.QuizSchema().Name {
				return nil, &llm.ErrProviderUnavailable{Provider: "mock", Err: errors.New("only quiz requests are served")}
			}
			return quizgen.DemoQuizJSON(numQuestions)
		}
		slog.Warn("using the mock LLM provider; quizzes are demo content")
		return mock, grading.KeywordJudge{}, nil
	}

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.PromptStandard)
	}
	judge, err := grading.NewLLMJudge(provider, prompts.PromptVariant(variant))
	if err != nil {
		return nil, nil, fmt.Errorf("create judge: %w", err)
	}
	return provider, judge, nil
}
