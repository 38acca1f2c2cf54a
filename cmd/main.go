package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/summonlabs/summon/internal/agent"
	"github.com/summonlabs/summon/internal/config"
	"github.com/summonlabs/summon/internal/orchestrator"
	"github.com/summonlabs/summon/internal/runstore"
	"github.com/summonlabs/summon/internal/web"
	"github.com/summonlabs/summon/internal/webhook"
)

var (
	loadDotEnv         = godotenv.Load
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(serve func(string, http.Handler) error) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Printf("Starting summon server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Platform: %s", cfg.Platform)
	log.Printf("Trigger phrase: %s", cfg.TriggerPhrase)
	log.Printf("Branch prefix: %s", cfg.BranchPrefix)

	runner := agent.NewClaudeRunner(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	log.Printf("Agent: %s (model %s)", runner.Name(), cfg.ClaudeModel)

	var notifier *orchestrator.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = orchestrator.NewNotifier(cfg.NotifyWebhookURL)
		log.Printf("Notifications: %s", cfg.NotifyWebhookURL)
	}

	runStore := runstore.NewStore()
	dispatcher := orchestrator.NewDispatcher(cfg, runner, notifier, runStore)
	handler := webhook.NewHandler(cfg.GitHubWebhookSecret, cfg.GitLabWebhookSecret, dispatcher)
	statusHandler := web.NewHandler(runStore)

	r := mux.NewRouter()
	handler.Register(r)
	statusHandler.RegisterRoutes(r)
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"service":"summon","status":"running","trigger":"%s"}`, cfg.TriggerPhrase)
	}).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Webhook endpoints: /webhook/github and /webhook/gitlab")

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}
