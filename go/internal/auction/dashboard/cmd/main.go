package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/mcdev12/live-auction/go/clients/auction_graphql_client"
	"github.com/mcdev12/live-auction/go/internal/auction/config"
	"github.com/mcdev12/live-auction/go/internal/auction/dashboard"
	"github.com/mcdev12/live-auction/go/internal/auction/remote"
	"github.com/mcdev12/live-auction/go/internal/auction/viewserver"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	headless := flag.Bool("headless", false, "serve the view bridge only, without terminal output or stdin commands")
	userID := flag.String("user", "", "bidder label (random User<n> when empty)")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("graphql_http_url", cfg.GraphQL.HTTPURL).
		Str("push_transport", cfg.Push.Transport).
		Str("view_addr", cfg.ViewServer.Addr).
		Msg("starting auction dashboard")

	client := auction_graphql_client.NewAuctionGraphQLClient(cfg.GraphQL.HTTPURL, cfg.GraphQL.WSURL)
	client.SetRequestTimeout(cfg.GraphQL.RequestTimeout)

	stream, closeStream, err := setupPushStream(cfg, client)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up push stream")
	}
	defer closeStream()

	clk := clockwork.NewRealClock()

	source := remote.NewSource(client, stream, clk, remote.Config{
		PullTimeout:   cfg.GraphQL.RequestTimeout,
		RetryDelay:    cfg.Push.RetryDelay,
		MaxRetryDelay: cfg.Push.MaxRetryDelay,
	})

	dash := dashboard.New(clk, source, client, client, dashboard.Config{
		UserID:          *userID,
		NotificationTTL: cfg.NotificationTTL,
	})
	log.Info().Str("user_id", dash.UserID()).Msg("bidding as")

	viewConfig := viewserver.DefaultConfig()
	viewConfig.Addr = cfg.ViewServer.Addr
	viewConfig.AllowedOrigins = cfg.ViewServer.AllowedOrigins
	views := viewserver.NewServer(viewConfig, dash, source)

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return source.Run(ctx) })
	g.Go(func() error { return dash.Run(ctx) })
	g.Go(func() error { return views.Run(ctx) })

	if !*headless {
		g.Go(func() error { return renderFrames(ctx, dash) })
		// Stdin reads cannot be interrupted, so the reader stays outside the group.
		go readCommands(ctx, os.Stdin, dash, stop)
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("auction dashboard exited with error")
		os.Exit(1)
	}
	log.Info().Msg("auction dashboard shutdown complete")
}

func setupPushStream(cfg *config.Config, client *auction_graphql_client.AuctionGraphQLClient) (remote.PushStream, func(), error) {
	switch cfg.Push.Transport {
	case config.TransportNATS:
		natsConfig := remote.DefaultNATSConfig()
		natsConfig.URL = cfg.Push.NATSURL
		natsConfig.Subject = cfg.Push.NATSSubject

		stream, err := remote.NewNATSStream(natsConfig)
		if err != nil {
			return nil, nil, err
		}
		return stream, func() {
			if err := stream.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close NATS stream")
			}
		}, nil

	case config.TransportGraphQLWS:
		return client, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown push transport %q", cfg.Push.Transport)
	}
}

// renderFrames prints each frame whose text differs from the previous one
func renderFrames(ctx context.Context, dash *dashboard.Dashboard) error {
	frames, unsubscribe := dash.Subscribe()
	defer unsubscribe()

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			text := dashboard.Render(frame)
			if text == last {
				continue
			}
			last = text
			fmt.Fprint(os.Stdout, "\n"+text)
		}
	}
}
