package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.temporal.io/sdk/client"
	temporalworker "go.temporal.io/sdk/worker"
	"goa.design/clue/log"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/agents/analysis"
	"github.com/researchlab/orchestrator/internal/agents/capability"
	"github.com/researchlab/orchestrator/internal/agents/literature"
	"github.com/researchlab/orchestrator/internal/agents/llm"
	llmanthropic "github.com/researchlab/orchestrator/internal/agents/llm/anthropic"
	llmbedrock "github.com/researchlab/orchestrator/internal/agents/llm/bedrock"
	llmopenai "github.com/researchlab/orchestrator/internal/agents/llm/openai"
	"github.com/researchlab/orchestrator/internal/chain"
	"github.com/researchlab/orchestrator/internal/config"
	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/ingest"
	"github.com/researchlab/orchestrator/internal/iteration"
	"github.com/researchlab/orchestrator/internal/lock"
	lockmemory "github.com/researchlab/orchestrator/internal/lock/memory"
	"github.com/researchlab/orchestrator/internal/lock/redislock"
	"github.com/researchlab/orchestrator/internal/notify"
	notifymemory "github.com/researchlab/orchestrator/internal/notify/memory"
	"github.com/researchlab/orchestrator/internal/notify/pulse"
	pulseclient "github.com/researchlab/orchestrator/internal/notify/pulse/clients/pulse"
	queuememory "github.com/researchlab/orchestrator/internal/queue/memory"
	queuetemporal "github.com/researchlab/orchestrator/internal/queue/temporal"
	"github.com/researchlab/orchestrator/internal/store"
	storememory "github.com/researchlab/orchestrator/internal/store/memory"
	storemongo "github.com/researchlab/orchestrator/internal/store/mongo"
	clientsmongo "github.com/researchlab/orchestrator/internal/store/mongo/clients/mongo"
	"github.com/researchlab/orchestrator/internal/telemetry"
	"github.com/researchlab/orchestrator/internal/worker"
)

const deepResearchQueueName = "deep-research"

func main() {
	var (
		configPathF = flag.String("config", "", "Path to a YAML config file overriding the built-in defaults")
		taskQueueF  = flag.String("task-queue", deepResearchQueueName, "Temporal task queue name (only used when TEMPORAL_HOST_PORT is set)")
		dbgF        = flag.Bool("debug", false, "Log request and response bodies")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg := config.Defaults()
	if *configPathF != "" {
		data, err := os.ReadFile(*configPathF)
		if err != nil {
			fatal(ctx, err, "failed to read config file")
		}
		cfg, err = config.LoadYAML(data)
		if err != nil {
			fatal(ctx, err, "failed to parse config file")
		}
	}
	cfg = config.LoadEnv(cfg)

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()

	st, err := buildStore(ctx)
	if err != nil {
		fatal(ctx, err, "failed to build state store")
	}

	redisClient := buildRedisClient()

	notifyBus, err := buildNotify(redisClient)
	if err != nil {
		fatal(ctx, err, "failed to build notification bus")
	}

	locker, err := buildLocker(redisClient, cfg)
	if err != nil {
		fatal(ctx, err, "failed to build distributed lock")
	}

	ingestHandler := &ingest.Handler{Store: st, Locker: locker, Notify: notifyBus, LockTTL: cfg.LockTTL}
	go serveIngestWebhook(ctx, ingestHandler)

	executorAgents, err := buildAgents(cfg)
	if err != nil {
		fatal(ctx, err, "failed to build agent invoker")
	}

	executor := &iteration.Executor{
		Store:     st,
		QueueName: deepResearchQueueName,
		Notify:    notifyBus,
		Agents:    executorAgents,
		Credit:    chain.NoopCredit{},
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
	}

	if hostPort := os.Getenv("TEMPORAL_HOST_PORT"); hostPort != "" {
		runTemporal(ctx, hostPort, *taskQueueF, executor)
		return
	}
	runMemory(ctx, cfg, executor, logger, metrics)
}

// buildStore selects the Mongo-backed State Store Adapter when MONGODB_URI is
// set, falling back to the in-memory Store for local/dev runs.
func buildStore(ctx context.Context) (store.Store, error) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		return storememory.New(), nil
	}
	database := os.Getenv("MONGODB_DATABASE")
	if database == "" {
		database = "orchestrator"
	}
	mc, err := mongodriver.Connect(mongooptions.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return storemongo.NewStore(storemongo.Options{
		Client: mustMongoClient(clientsmongo.New(clientsmongo.Options{
			Client:   mc,
			Database: database,
			Timeout:  10 * time.Second,
		})),
	})
}

func mustMongoClient(c clientsmongo.Client, err error) clientsmongo.Client {
	if err != nil {
		panic(err)
	}
	return c
}

// buildRedisClient returns nil when REDIS_ADDR is unset; both the
// Notification Bus and the Distributed Lock share this one connection.
func buildRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
}

func buildNotify(redisClient *redis.Client) (notify.Bus, error) {
	if redisClient == nil {
		return notifymemory.New(), nil
	}
	pc, err := pulseclient.New(pulseclient.Options{
		Redis:            redisClient,
		StreamMaxLen:     1000,
		OperationTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("build pulse client: %w", err)
	}
	return pulse.New(pulse.Options{Client: pc})
}

func buildLocker(redisClient *redis.Client, cfg config.Config) (lock.Locker, error) {
	retry := lock.RetryOptions{MaxAttempts: cfg.LockMaxRetries, Backoff: cfg.LockRetryDelay}
	if redisClient == nil {
		return lockmemory.New(retry), nil
	}
	return redislock.New(redislock.Options{Client: redisClient, Retry: retry})
}

// buildAgents wires the Agent Invoker's eight capabilities onto whichever LLM
// providers have credentials configured, following the DOMAIN STACK mapping:
// Anthropic backs the high/small-reasoning capabilities, OpenAI backs
// Planning, Bedrock backs Discovery. Any capability whose preferred provider
// is unavailable falls back to the next configured provider so the worker
// still starts with a single provider present.
func buildAgents(cfg config.Config) (iteration.Agents, error) {
	providers, err := buildLLMProviders()
	if err != nil {
		return iteration.Agents{}, err
	}
	if len(providers) == 0 {
		return iteration.Agents{}, fmt.Errorf("no LLM provider credentials configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or AWS bedrock credentials)")
	}

	pick := func(preferred ...llm.Client) llm.Client {
		for _, c := range preferred {
			if c != nil {
				return c
			}
		}
		for _, c := range providers {
			return c
		}
		return nil
	}

	var anthropicHigh, anthropicSmall llm.Client
	if ac, ok := providers["anthropic"].(*llmanthropic.Client); ok {
		anthropicHigh = ac.WithTier(llmanthropic.TierHigh)
		anthropicSmall = ac.WithTier(llmanthropic.TierSmall)
	}

	return iteration.Agents{
		Planning:         capability.Planning{Client: pick(providers["openai"], providers["anthropic"], providers["bedrock"])},
		Literature:       buildLiteratureSources(cfg),
		Analysis:         buildAnalysisSources(cfg),
		Hypothesis:       capability.Hypothesis{Client: pick(anthropicHigh, providers["openai"], providers["bedrock"])},
		Reflection:       capability.Reflection{Client: pick(anthropicHigh, providers["openai"], providers["bedrock"])},
		Discovery:        capability.Discovery{Client: pick(providers["bedrock"], providers["anthropic"], providers["openai"])},
		ContinueDecision: capability.ContinueDecision{Client: pick(anthropicSmall, providers["openai"], providers["bedrock"])},
		Reply:            capability.Reply{Client: pick(providers["anthropic"], providers["openai"], providers["bedrock"])},
	}, nil
}

func buildLLMProviders() (map[string]llm.Client, error) {
	providers := map[string]llm.Client{}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		c, err := llmanthropic.NewFromAPIKey(apiKey, llmanthropic.Options{
			// Prefer the typed sdk.Model* constants over bare strings when
			// pinning a default in code; left as env-overridable literals here
			// since the worker has no fixed model generation to pin against.
			DefaultModel: envOr("ANTHROPIC_DEFAULT_MODEL", "claude-sonnet-4-5-20250929"),
			HighModel:    envOr("ANTHROPIC_HIGH_MODEL", "claude-opus-4-1-20250805"),
			SmallModel:   envOr("ANTHROPIC_SMALL_MODEL", "claude-haiku-4-5-20251001"),
			MaxTokens:    4096,
			Temperature:  0.2,
		})
		if err != nil {
			return nil, fmt.Errorf("build anthropic client: %w", err)
		}
		providers["anthropic"] = c
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c, err := llmopenai.New(apiKey, llmopenai.Options{
			DefaultModel: envOr("OPENAI_DEFAULT_MODEL", "gpt-4o"),
			MaxTokens:    4096,
			Temperature:  0.2,
		})
		if err != nil {
			return nil, fmt.Errorf("build openai client: %w", err)
		}
		providers["openai"] = c
	}

	if model := os.Getenv("BEDROCK_MODEL_ID"); model != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load aws config for bedrock: %w", err)
		}
		c, err := llmbedrock.New(llmbedrock.Options{
			Runtime:      bedrockruntime.NewFromConfig(awsCfg),
			DefaultModel: model,
			MaxTokens:    4096,
			Temperature:  0.2,
		})
		if err != nil {
			return nil, fmt.Errorf("build bedrock client: %w", err)
		}
		providers["bedrock"] = c
	}

	return providers, nil
}

func buildLiteratureSources(cfg config.Config) iteration.LiteratureSources {
	sources := iteration.LiteratureSources{}
	add := func(source agents.LiteratureSource, baseURL string) {
		if baseURL == "" {
			return
		}
		sources[source] = literature.New(source, literature.Options{
			BaseURL:      baseURL,
			HTTP:         http.DefaultClient,
			PollInterval: 5 * time.Second,
			Timeout:      cfg.LiteratureTimeout,
		})
	}
	add(agents.LitEdison, os.Getenv("LITERATURE_EDISON_URL"))
	add(agents.LitBioLitDeep, os.Getenv("LITERATURE_BIOLITDEEP_URL"))
	add(agents.LitBioLit, os.Getenv("LITERATURE_BIOLIT_URL"))
	if cfg.OpenScholarEnabled() {
		add(agents.LitOpenScholar, cfg.OpenScholarAPIURL)
	}
	if cfg.KnowledgeBaseEnabled() {
		add(agents.LitKnowledge, os.Getenv("KNOWLEDGE_BASE_URL"))
	}
	return sources
}

func buildAnalysisSources(cfg config.Config) iteration.AnalysisSources {
	sources := iteration.AnalysisSources{}
	add := func(source agents.AnalysisSource, baseURL string) {
		if baseURL == "" {
			return
		}
		sources[source] = analysis.New(source, analysis.Options{
			BaseURL:      baseURL,
			HTTP:         http.DefaultClient,
			PollInterval: 5 * time.Second,
			Timeout:      cfg.AnalysisTimeout,
		})
	}
	add(agents.AnaEdison, os.Getenv("ANALYSIS_EDISON_URL"))
	add(agents.AnaBio, os.Getenv("ANALYSIS_BIO_URL"))
	return sources
}

// datasetReadyRequest is the body the external file-ingest service posts once
// a file attached to a conversation state finishes processing.
type datasetReadyRequest struct {
	DatasetID string `json:"dataset_id"`
	Filename  string `json:"filename"`
}

// serveIngestWebhook listens for dataset-ready completions and applies them
// through ingest.Handler, which serializes the ConversationState.UploadedDatasets
// mutation behind the Distributed Lock (§4.4). Listens on
// INGEST_LISTEN_ADDR, or ":8090" if unset.
func serveIngestWebhook(ctx context.Context, h *ingest.Handler) {
	addr := envOr("INGEST_LISTEN_ADDR", ":8090")
	r := chi.NewRouter()
	r.Post("/internal/conversation-states/{id}/datasets", func(w http.ResponseWriter, req *http.Request) {
		conversationStateID := chi.URLParam(req, "id")
		var body datasetReadyRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		dataset := domain.Dataset{ID: body.DatasetID, Filename: body.Filename}
		if err := h.HandleDatasetReady(req.Context(), conversationStateID, dataset); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "dataset ingest handler failed"}, log.KV{K: "conversation_state_id", V: conversationStateID})
			http.Error(w, "failed to apply dataset", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	log.Print(ctx, log.KV{K: "msg", V: "starting dataset-ingest webhook"}, log.KV{K: "addr", V: addr})
	if err := http.ListenAndServe(addr, r); err != nil && err != http.ErrServerClosed {
		log.Error(ctx, err, log.KV{K: "msg", V: "dataset-ingest webhook exited"})
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// runTemporal wires the Durable Queue onto Temporal and blocks running the
// Temporal worker directly: queue.Queue.Reserve/Ack/Fail are no-ops against
// this backend (see internal/queue/temporal), so the Worker Runtime's
// poll-based Pool never applies here.
func runTemporal(ctx context.Context, hostPort, taskQueue string, executor *iteration.Executor) {
	c, err := client.NewLazyClient(client.Options{HostPort: hostPort})
	if err != nil {
		fatal(ctx, err, "failed to build temporal client")
	}
	defer c.Close()

	q, err := queuetemporal.New(queuetemporal.Options{
		Client:    c,
		TaskQueue: taskQueue,
		Runner: func(ctx context.Context, payload domain.DeepResearchJobData) error {
			return executor.Run(ctx, domain.Job{ID: payload.MessageID, Payload: payload})
		},
	})
	if err != nil {
		fatal(ctx, err, "failed to build temporal queue")
	}
	executor.Queue = q

	log.Printf(ctx, "starting temporal worker on task queue %q", taskQueue)
	if err := q.Worker().Run(temporalworker.InterruptCh()); err != nil {
		fatal(ctx, err, "temporal worker exited with error")
	}
}

// fatal logs err via clue and terminates the process. clue's log package has
// no Fatal helper of its own, so this mirrors what one line short of it looks
// like in every other clue-based service in the pack.
func fatal(ctx context.Context, err error, msg string) {
	log.Error(ctx, err, log.KV{K: "msg", V: msg})
	os.Exit(1)
}

// runMemory wires the Durable Queue onto the in-memory backend and drives it
// with the Worker Runtime's poll-based Pool, blocking until SIGINT/SIGTERM.
func runMemory(ctx context.Context, cfg config.Config, executor *iteration.Executor, logger telemetry.Logger, metrics telemetry.Metrics) {
	q := queuememory.New()
	executor.Queue = q

	pool := worker.NewPool(q, executor, worker.QueueConfig{
		Name:               deepResearchQueueName,
		Concurrency:        cfg.DeepResearchQueue.Concurrency,
		LeaseDuration:      cfg.DeepResearchQueue.LeaseDuration,
		LeaseRenewal:       cfg.DeepResearchQueue.LeaseRenewal,
		StalledSweepPeriod: cfg.DeepResearchQueue.StalledSweepPeriod,
		PollInterval:       500 * time.Millisecond,
	}, logger, metrics)

	log.Print(ctx, log.KV{K: "msg", V: "starting in-memory worker runtime"})
	worker.NewRuntime(pool).Run(ctx)
}
