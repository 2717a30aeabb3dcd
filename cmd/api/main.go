package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"careflow/auth"
	"careflow/db"
	"careflow/feed"
	"careflow/notify"
	"careflow/presence"
	"careflow/request"
)

func main() {
	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	pushEndpoint := os.Getenv("PUSH_ENDPOINT")
	if pushEndpoint == "" {
		pushEndpoint = notify.DefaultPushEndpoint
	}

	var overseerAddresses []string
	if raw := os.Getenv("OVERSEER_ADDRESSES"); raw != "" {
		overseerAddresses = strings.Split(raw, ",")
	}

	presenceRepo := presence.NewRepository(pool)
	presenceService := presence.NewService(presenceRepo)

	dispatcher := notify.NewDispatcher(
		notify.NewPushSender(pushEndpoint),
		presenceRepo,
		notify.Config{OverseerAddresses: overseerAddresses},
	)

	requestRepo := request.NewRepository(pool)
	requestService := request.NewService(requestRepo, dispatcher)

	authService := auth.NewService(auth.NewRepository(pool), jwtSecret)

	subscriber := feed.NewSubscriber(pool, requestRepo)
	go func() {
		if err := subscriber.Run(ctx, func(snap []request.Request) {
			log.Printf("feed: snapshot with %d requests", len(snap))
		}); err != nil {
			log.Printf("feed subscriber stopped: %v", err)
		}
	}()

	server := &Server{
		authService:     authService,
		requestService:  requestService,
		presenceService: presenceService,
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("api listening on %s", addr)
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
