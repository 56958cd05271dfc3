package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
	infrapg "trivia-session-service/internal/infra/postgres"
	infraredis "trivia-session-service/internal/infra/redis"
	"trivia-session-service/internal/source"
	transport "trivia-session-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store app.StateStore = memory.NewStateStore()
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = infrapg.NewStateStore(pool)
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = infraredis.NewStateStore(client, config.Duration(cfg.Redis.TTL, 0))
	}

	var fetcher source.Fetcher
	if cfg.Source.URL == "none" {
		fetcher = source.NewStaticSource(samplePool())
	} else {
		fetcher = source.NewOpenTDBClient(cfg.Source.URL, config.Duration(cfg.Source.Timeout, 15*time.Second))
	}
	fetcher = source.NewCollapsing(fetcher)

	machineCfg := app.Config{
		QuestionCount:   cfg.Quiz.Questions,
		SessionDuration: config.Duration(cfg.Quiz.Duration, 60*time.Second),
		RetryDelay:      config.Duration(cfg.Quiz.RetryDelay, 2*time.Second),
		TickInterval:    config.Duration(cfg.Quiz.Tick, time.Second),
	}

	runCtx, stopMachines := context.WithCancel(context.Background())
	defer stopMachines()

	machines := app.NewMachineSet(runCtx, func(key string) *app.Machine {
		return app.NewMachine(key, fetcher, store, machineCfg)
	})
	wsHandler := transport.NewWSHandler(machines)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// samplePool backs the offline demo mode (source.url: none).
func samplePool() []domain.Question {
	return []domain.Question{
		{Prompt: "What is 2 + 2?", CorrectAnswer: "4", Options: []string{"3", "4", "5", "22"}},
		{Prompt: "Which planet is known as the Red Planet?", CorrectAnswer: "Mars", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}},
		{Prompt: "What is the capital of Japan?", CorrectAnswer: "Tokyo", Options: []string{"Kyoto", "Osaka", "Tokyo", "Nagoya"}},
		{Prompt: "How many continents are there?", CorrectAnswer: "7", Options: []string{"5", "6", "7", "8"}},
		{Prompt: "What gas do plants absorb from the atmosphere?", CorrectAnswer: "Carbon dioxide", Options: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}},
		{Prompt: "Which ocean is the largest?", CorrectAnswer: "Pacific", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}},
		{Prompt: "What is the chemical symbol for gold?", CorrectAnswer: "Au", Options: []string{"Ag", "Au", "Gd", "Go"}},
		{Prompt: "How many sides does a hexagon have?", CorrectAnswer: "6", Options: []string{"5", "6", "7", "8"}},
		{Prompt: "Which language has the most native speakers?", CorrectAnswer: "Mandarin Chinese", Options: []string{"English", "Spanish", "Hindi", "Mandarin Chinese"}},
		{Prompt: "What year did the first moon landing happen?", CorrectAnswer: "1969", Options: []string{"1965", "1969", "1971", "1959"}},
		{Prompt: "What is the smallest prime number?", CorrectAnswer: "2", Options: []string{"0", "1", "2", "3"}},
		{Prompt: "Which instrument has 88 keys?", CorrectAnswer: "Piano", Options: []string{"Organ", "Harpsichord", "Piano", "Accordion"}},
	}
}
