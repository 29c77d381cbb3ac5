package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/securesure/chatd/internal/chat"
	"github.com/securesure/chatd/internal/gateway"
	"github.com/securesure/chatd/pkg/config"
	"github.com/securesure/chatd/pkg/embeddings"
	"github.com/securesure/chatd/pkg/llm"
	"github.com/securesure/chatd/pkg/observability"
	"github.com/securesure/chatd/pkg/retrieval"
	"github.com/securesure/chatd/pkg/session"
	"github.com/securesure/chatd/pkg/vectorstore"

	_ "github.com/securesure/chatd/pkg/vectorstore/memory"
	_ "github.com/securesure/chatd/pkg/vectorstore/pinecone"
)

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway and observability server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error
			if configFile != "" {
				cfg, err = config.Load(configFile)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")
	return cmd
}

func serve(cfg *config.Config) error {
	log.Printf("Starting chatd v%s", Version)

	observability.InitMetrics()
	if err := observability.InitTracingFromEnv(); err != nil {
		log.Printf("Warning: tracing init failed: %v", err)
	}

	store, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := embeddings.New(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	defer embedder.Close()

	vecStore, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	defer vecStore.Close()

	retriever := retrieval.NewClient(embedder, vecStore, cfg.VectorStore.Namespace)

	provider, err := llm.NewGroqProvider(cfg.LLM.Groq)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	broker := gateway.NewBroker()
	template := chat.DefaultTemplate()
	if cfg.Chat.SystemTemplate != "" {
		template = chat.Template{System: cfg.Chat.SystemTemplate}
	}
	handler := chat.NewHandler(store, retriever, provider, broker, chat.Config{
		Template:    template,
		TopK:        cfg.Chat.TopK,
		TurnTimeout: cfg.TurnTimeout(),
	})

	checker := observability.NewHealthChecker()
	checker.Register(observability.SessionStoreCheck(store.Len))

	gw := gateway.NewServer(handler, store, broker, gateway.Config{Port: cfg.Server.Port})
	obs := observability.NewServer(cfg.Server.MetricsPort, checker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n, err := store.Len(ctx); err == nil {
					observability.SetActiveSessions(n)
				}
			}
		}
	})
	g.Go(func() error {
		log.Printf("Gateway listening on :%d", cfg.Server.Port)
		if err := gw.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("Observability listening on :%d", cfg.Server.MetricsPort)
		if err := obs.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("observability: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := gw.Shutdown(shutdownCtx); err != nil {
			log.Printf("Gateway shutdown error: %v", err)
		}
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Printf("Observability shutdown error: %v", err)
		}
		if err := observability.ShutdownTracing(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("chatd stopped")
	return nil
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	memCfg, redisCfg, useRedis := cfg.SessionStoreConfig()
	if useRedis {
		store, err := session.NewRedisStore(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		log.Printf("Session store: redis (%s)", redisCfg.Addr)
		return store, nil
	}
	log.Println("Session store: memory")
	return session.NewMemoryStore(memCfg), nil
}
