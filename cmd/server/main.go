package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/agents"
	"github.com/example/conference-concierge/internal/api"
	"github.com/example/conference-concierge/internal/config"
	"github.com/example/conference-concierge/internal/guardrail"
	"github.com/example/conference-concierge/internal/orchestrator"
	"github.com/example/conference-concierge/internal/providers/llm"
	"github.com/example/conference-concierge/internal/rag"
	"github.com/example/conference-concierge/internal/session"
	"github.com/example/conference-concierge/internal/tools"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("CONCIERGE_CONFIG"))
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := llm.NewFromEnv(ctx, cfg.LLM.Model, cfg.LLM.EmbeddingModel, logger)
	if closer, ok := client.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// the guardrail can run a lighter model than the main pipeline
	guardrailClient := client
	if gc, ok := client.(*llm.GeminiClient); ok && cfg.LLM.GuardrailModel != cfg.LLM.Model {
		guardrailClient = gc.WithModel(cfg.LLM.GuardrailModel)
	}

	store, err := session.NewStore(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("opening session store", zap.Error(err))
	}
	index := rag.NewIndex(cfg.DataDir, client, logger, cfg.RAG.RetrieveK, cfg.RAG.TopK)

	registry := tools.NewRegistry()
	registry.Register(&tools.ScheduleOverviewTool{Index: index})
	registry.Register(&tools.RAGSearchTool{Index: index})
	if serperKey := os.Getenv("SERPER_API_KEY"); serperKey != "" {
		serper := &tools.SerperClient{APIKey: serperKey, Region: "de"}
		registry.Register(&tools.WebSearchTool{Client: serper})
		registry.Register(&tools.PlacesSearchTool{Client: serper})
	} else {
		logger.Warn("SERPER_API_KEY not set, web and places search disabled")
	}

	orch := orchestrator.New(
		agents.NewIntakeAgent(client, logger),
		agents.NewPlanningAgent(client, logger),
		agents.NewExecutorAgent(client, registry, logger, cfg.Executor.MaxTaskTurns, cfg.Executor.CallTimeout),
		guardrail.New(guardrailClient, logger),
		store,
		logger,
	)

	srv := api.NewServer(orch, store, index, logger, cfg.Server.Addr)
	logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
