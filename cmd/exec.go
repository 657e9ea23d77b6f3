package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkin-system/config"
	"checkin-system/internal/handlers"
	"checkin-system/internal/services"
	"checkin-system/internal/services/notify"
	"checkin-system/internal/services/notify/line"
	"checkin-system/internal/services/realtime"
	"checkin-system/internal/store/pbstore"
	_ "checkin-system/migrations"
	"checkin-system/monitoring"
	"checkin-system/security"
	"checkin-system/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional; without it locks and rate limits stay in process
	var (
		redisClient *redis.Client
		locker      utils.Locker = utils.NewLocalLocker()
		health      func(ctx context.Context) error
	)
	if cfg.RedisURL != "" {
		client, err := utils.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		locker = utils.NewRedisLocker(client)
		health = func(ctx context.Context) error { return utils.RedisHealthCheck(ctx, client) }
	}

	var signer *utils.QRSigner
	if cfg.QRSecret != "" {
		s, err := utils.NewQRSigner(cfg.QRSecret)
		if err != nil {
			return err
		}
		signer = s
	}

	var rt *realtime.Client
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		rt = realtime.New(realtime.Config{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})
		defer rt.Close()
	}

	notifier, err := newNotifier(cfg, rt)
	if err != nil {
		return err
	}
	var display services.DisplayPublisher
	if rt != nil {
		display = rt
	}

	// Initialize services
	monitor := monitoring.NewMonitor()
	st := pbstore.New(app)
	retryCfg := cfg.Retry()

	allocator := services.NewAllocator(st, retryCfg, notifier, monitor)
	checkinService := services.NewCheckInService(allocator, signer)
	counterService := services.NewCounterService(st, retryCfg)
	dispatcher := services.NewDispatcher(st, retryCfg, notifier, display, monitor)
	seatService := services.NewSeatService(st, locker, cfg.SeatLockTTL, retryCfg, monitor)

	// Initialize handlers
	h := &handlers.Handlers{
		CheckIn: handlers.NewCheckInHandler(checkinService, counterService),
		Queue:   handlers.NewQueueHandler(dispatcher),
		Seat:    handlers.NewSeatHandler(seatService),
		Health:  health,
	}

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	setupRecordHooks(app)

	g, gctx := errgroup.WithContext(ctx)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		h.Register(se)

		if cfg.EnableMetrics {
			limiter := security.NewRateLimiter(redisClient, cfg.DisplayRateLimit, time.Minute)
			ops := handlers.NewOpsServer(":"+cfg.MetricsPort, dispatcher, limiter, health)
			g.Go(func() error { return ops.Run(gctx) })
		}

		if rt != nil && signer != nil {
			g.Go(func() error {
				rt.ListenScans(gctx, cfg.ScanChannel, handlers.ScanHandler(checkinService))
				return nil
			})
		}

		log.Println("Server routes registered")

		return se.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		log.Println("Shutdown signal received, cleaning up...")
		stop()
		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		return err
	}
	stop()
	return g.Wait()
}

func newNotifier(cfg *config.Config, rt *realtime.Client) (notify.Notifier, error) {
	switch cfg.NotifyTransport {
	case "line":
		return line.NewClient(line.Config{
			BaseURL:      cfg.LineBaseURL,
			ChannelToken: cfg.LineChannelToken,
			Timeout:      cfg.NotifyTimeout,
		})
	case "pubnub":
		if rt == nil {
			return nil, fmt.Errorf("notify transport pubnub needs PUBNUB_PUBLISH_KEY and PUBNUB_SUBSCRIBE_KEY")
		}
		return rt, nil
	case "", "none":
		return notify.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notify transport %q", cfg.NotifyTransport)
	}
}

// setupRecordHooks keeps records created through the admin UI consistent
// with what the services expect.
func setupRecordHooks(app *pocketbase.PocketBase) {
	// Registrations typed in by hand go to the end of the import order so
	// seating by import order stays stable.
	app.OnRecordCreateRequest(pbstore.CollectionRegistrations).BindFunc(func(e *core.RecordRequestEvent) error {
		if e.Record.GetInt("import_order") > 0 {
			return e.Next()
		}

		activityID := e.Record.GetString("activity")
		n, err := e.App.CountRecords(pbstore.CollectionRegistrations, dbx.HashExp{"activity": activityID})
		if err != nil {
			slog.Error("Failed to count registrations for import order",
				"activityID", activityID,
				"error", err,
			)
			return e.Next()
		}
		e.Record.Set("import_order", n+1)
		return e.Next()
	})

	// A channel created without a number takes the next free one.
	app.OnRecordCreateRequest(pbstore.CollectionChannels).BindFunc(func(e *core.RecordRequestEvent) error {
		if e.Record.GetInt("channel_number") > 0 {
			return e.Next()
		}

		activityID := e.Record.GetString("activity")
		n, err := e.App.CountRecords(pbstore.CollectionChannels, dbx.HashExp{"activity": activityID})
		if err != nil {
			slog.Error("Failed to count channels", "activityID", activityID, "error", err)
			return e.Next()
		}
		e.Record.Set("channel_number", n+1)
		slog.Info("Numbered new queue channel", "activityID", activityID, "channelNumber", n+1)
		return e.Next()
	})
}
