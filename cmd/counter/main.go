package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/blockedby/chatcount/internal/config"
	"github.com/blockedby/chatcount/internal/counter"
	"github.com/blockedby/chatcount/internal/database"
	"github.com/blockedby/chatcount/internal/logger"
	"github.com/blockedby/chatcount/internal/publisher"
	"github.com/blockedby/chatcount/internal/repository"
	"github.com/blockedby/chatcount/internal/roster"
	"github.com/blockedby/chatcount/internal/telegram"
)

func main() {
	startText := flag.String("start", "", "chat link(s) counting starts from, e.g. https://t.me/chat_name/1234")
	endText := flag.String("end", "", "optional chat link(s) where counting stops (inclusive)")
	allSessions := flag.Bool("all-sessions", false, "split each chat range across every session")
	flag.Parse()

	if *startText == "" {
		fmt.Fprintln(os.Stderr, "usage: counter -start <link...> [-end <link...>] [-all-sessions]")
		os.Exit(1)
	}

	// 1. Load config (.env is optional)
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	if cfg.TGApiID == 0 || cfg.TGApiHash == "" {
		log.Fatal().Msg("TG_API_ID and TG_API_HASH are required")
	}

	// 3. Parse the requested ranges before touching the network
	targets := counter.ParseRanges(*startText, *endText)
	if len(targets) == 0 {
		log.Fatal().Msg("could not detect any valid chat details in the input")
	}

	// 4. Connect sessions from the roster
	sessionRoster, err := config.LoadRoster(cfg.SessionsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load session roster")
	}

	registry := telegram.NewRegistry()
	defer registry.StopAll()
	for _, sess := range sessionRoster.Sessions {
		client, err := telegram.NewSessionClient(cfg, sess)
		if err != nil {
			log.Error().Err(err).Str("session", sess.Name).Msg("failed to connect session, skipping")
			continue
		}
		registry.Add(client)
	}
	if registry.Len() == 0 {
		log.Fatal().Msg("no session connected, run tg-auth first")
	}

	// 5. Load whitelist/blacklist rosters
	whitelist, err := roster.Load(roster.WhitelistFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load whitelist")
	}
	blacklist, err := roster.Load(roster.BlacklistFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load blacklist")
	}

	// 6. Open run history storage
	db, err := database.New(cfg.HistoryDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history database")
	}
	defer db.Close()

	runs, err := repository.NewRunsRepository(db.GORM)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare run history")
	}

	// 7. Optional NATS mirror of the event stream
	var pub *publisher.NATSPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			pub = publisher.NewNATSPublisher(nc)
		}
	}

	// 8. Build and start the orchestrator
	orch := counter.New(counter.Sessions(registry), counter.Options{
		Whitelist: whitelist,
		Blacklist: blacklist,
	})
	orch.EnqueueTargets(targets)

	consumerDone := make(chan struct{})
	go consumeEvents(orch.Events(), orch.Overall, pub, consumerDone)

	var cancelled atomic.Bool
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal, cancelling run")
		cancelled.Store(true)
		orch.Cancel()
	}()

	startedAt := time.Now()
	if err := orch.Start(*allSessions); err != nil {
		log.Fatal().Err(err).Msg("failed to start counting")
	}
	orch.Wait()
	close(consumerDone)

	// 9. Print totals and persist the run
	finishedAt := time.Now()
	for _, target := range targets {
		counts, ok := orch.ChatCounts(target.Chat)
		if !ok {
			continue
		}

		fmt.Printf("\nChat: %s\n", target.Chat)
		fmt.Printf("  Messages Checked:     %d\n", counts.TotalMessage)
		fmt.Printf("  Whitelisted Messages: %d\n", counts.WhitelistedMessage)
		fmt.Printf("  Users Found:          %d\n", counts.TotalUser)
		fmt.Printf("  Whitelisted Users:    %d\n", len(counts.WhitelistedUsers))
		fmt.Printf("  Deleted Messages:     %d\n", counts.DeletedMessage)

		err := runs.Save(context.Background(), &repository.Run{
			Chat:               target.Chat,
			StartID:            target.StartID,
			EndID:              target.EndID,
			TotalMessage:       counts.TotalMessage,
			WhitelistedMessage: counts.WhitelistedMessage,
			TotalUser:          counts.TotalUser,
			DeletedMessage:     counts.DeletedMessage,
			Cancelled:          cancelled.Load(),
			StartedAt:          startedAt,
			FinishedAt:         finishedAt,
		})
		if err != nil {
			log.Error().Err(err).Str("chat", target.Chat).Msg("failed to save run history")
		}
	}
}

// consumeEvents drains the event stream, logging the notable events
// and mirroring everything to NATS when configured. After done it
// flushes whatever the run left buffered before returning.
func consumeEvents(events <-chan counter.Event, overall func() float64, pub *publisher.NATSPublisher, done <-chan struct{}) {
	for {
		select {
		case ev := <-events:
			handleEvent(ev, overall, pub)
		case <-done:
			for {
				select {
				case ev := <-events:
					handleEvent(ev, overall, pub)
				default:
					return
				}
			}
		}
	}
}

// handleEvent logs one event and forwards it to the publisher.
func handleEvent(ev counter.Event, overall func() float64, pub *publisher.NATSPublisher) {
	log := logger.Get()

	switch e := ev.(type) {
	case counter.JobFinished:
		log.Info().
			Str("chat", e.Chat).
			Str("session", e.Session).
			Bool("cancelled", e.Cancelled).
			Float64("overall", overall()).
			Msg("job finished")
	case counter.ChatNotFound:
		log.Warn().Str("chat", e.Chat).Msg("chat does not exist")
	case counter.SessionUnauthorized:
		log.Warn().Str("session", e.Session).Msg("session is not authorized, create it again with tg-auth")
	case counter.FloodWaitDetected:
		log.Info().Str("chat", e.Chat).Msg("flood wait triggered, will resume soon")
	case counter.WorkerFailed:
		log.Error().Err(e.Err).Str("chat", e.Chat).Msg("counting failed for chat")
	}

	if pub != nil {
		if err := pub.Publish(context.Background(), ev); err != nil {
			log.Warn().Err(err).Msg("failed to publish event")
		}
	}
}
