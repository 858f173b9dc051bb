package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"
	"linkedpost/infrastructure/cache"
	"linkedpost/infrastructure/clients/linkedin"
	"linkedpost/infrastructure/configuration"
	"linkedpost/infrastructure/events"
	"linkedpost/infrastructure/logger"
	"linkedpost/infrastructure/metrics"
	"linkedpost/infrastructure/persistence"
	"linkedpost/infrastructure/poller"
	"linkedpost/infrastructure/pubsub"
	"linkedpost/infrastructure/realtime"
	"linkedpost/infrastructure/servicebus"
	httpHandler "linkedpost/interfaces/http"
	"linkedpost/server"
	"linkedpost/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

// Store bundles the repositories of the selected database vendor.
type Store struct {
	Posts       repository.IPost
	Credentials repository.ICredential
	Check       httpHandler.HealthCheck
	Close       func()
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	store, err := InitiateStore(ctx, configuration.C.Store.Vendor)
	if err != nil {
		logger.GetLogger().WithField("error", err).WithField("vendor", configuration.C.Store.Vendor).Error("Store initialization failed")
		os.Exit(1)
	}
	defer store.Close()
	checks := map[string]httpHandler.HealthCheck{"database": store.Check}

	var (
		profileCache *cache.ProfileCache
		states       repository.IOAuthState = cache.NewMemoryStateStore()
	)
	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - continuing without profile cache")
	} else {
		defer redisClient.Close()
		profileCache = cache.NewProfileCache(redisClient, configuration.C.RedisClient.ProfileTTL())
		states = cache.NewStateStore(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		logger.GetLogger().Info("Redis client initialized successfully.")
	}

	lc := configuration.C.LinkedIn
	retry := linkedin.DefaultRetryConfig()
	retry.MaxRetries = lc.MaxRetries
	retry.CircuitBreaker = lc.CircuitBreaker
	clientOpts := []linkedin.Option{
		linkedin.WithRequestTimeout(lc.RequestTimeout()),
		linkedin.WithRetryConfig(retry),
	}
	if profileCache != nil {
		clientOpts = append(clientOpts, linkedin.WithProfileCache(profileCache))
	}
	linkedInClient := linkedin.NewClient(lc.APIBaseURL, clientOpts...)
	oauth := linkedin.NewOAuth(linkedin.OAuthConfig{
		ClientID:     lc.ClientID,
		ClientSecret: lc.ClientSecret,
		RedirectURI:  lc.RedirectURI,
		AuthBaseURL:  lc.AuthBaseURL,
	})

	hub := realtime.NewPostHub()
	sinks := []repository.IPostEvents{hub}
	if ps := configuration.C.Events.Pubsub; ps.ProjectID != "" && ps.Topic != "" {
		pubSubClient, err := pubsub.NewPubSub(ctx, ps.ProjectID, ps.CredentialsFile)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		} else if postEvents, err := pubsub.NewPostEvents(ctx, pubSubClient, ps.Topic); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while resolving PubSub topic")
			_ = pubSubClient.Close()
		} else {
			defer func() {
				postEvents.Close()
				_ = pubSubClient.Close()
			}()
			sinks = append(sinks, postEvents)
		}
	}
	if sb := configuration.C.Events.ServiceBus; sb.Namespace != "" && sb.Queue != "" {
		azServiceBusClient, err := servicebus.NewServiceBus(ctx, sb.Namespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus events")
		} else if postEvents, err := servicebus.NewPostEvents(azServiceBusClient, sb.Queue); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Error while creating Service Bus sender")
			_ = azServiceBusClient.Close(context.Background())
		} else {
			defer func() {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer closeCancel()
				_ = postEvents.Close(closeCtx)
				_ = azServiceBusClient.Close(closeCtx)
			}()
			sinks = append(sinks, postEvents)
		}
	}
	postEvents := events.New(sinks...)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	sweepUsecase := usecase.NewSweepUsecase(store.Posts, store.Credentials, linkedInClient, oauth, postEvents, usecase.SweepConfig{
		Concurrency:    configuration.C.Sweep.Concurrency,
		PostTimeout:    configuration.C.Sweep.PostTimeout(),
		RefreshExpired: configuration.C.Sweep.RefreshExpired,
	})
	postUsecase := usecase.NewPostUsecase(store.Posts, store.Credentials, linkedInClient, postEvents)
	var linkedInUsecase usecase.ILinkedInUsecase
	if profileCache != nil {
		linkedInUsecase = usecase.NewLinkedInUsecase(oauth, linkedInClient, store.Credentials, states, profileCache)
	} else {
		linkedInUsecase = usecase.NewLinkedInUsecase(oauth, linkedInClient, store.Credentials, states, nil)
	}

	router := server.InitiateRouter(
		httpHandler.NewSweepHandler(sweepUsecase),
		httpHandler.NewPostHandler(postUsecase),
		httpHandler.NewLinkedInOAuthHandler(linkedInUsecase, lc.ConnectedRedirect),
		httpHandler.NewHealthHandler(checks),
		hub,
		app.SecretKey,
		configuration.C.Cors.AllowOrigins,
	)

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled, "store": configuration.C.Store.Vendor}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
		} else {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	})

	if configuration.C.Poller.Enabled {
		p := &poller.Poller{
			Interval: configuration.C.Poller.Interval(),
			Endpoint: configuration.C.Poller.Endpoint,
			OnResults: func(results []model.SweepResult) {
				logger.GetLogger().WithField("results", len(results)).Info("Fallback poll processed scheduled posts")
			},
		}
		logger.GetLogger().WithField("interval", p.Interval.String()).Info("Starting fallback poller")
		g.Go(func() error {
			p.Run(ctx)
			return nil
		})
	}

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateStore connects the configured vendor and makes sure its schema or
// indexes exist.
func InitiateStore(ctx context.Context, vendor string) (*Store, error) {
	switch vendor {
	case configuration.VendorPostgres:
		db, err := persistence.NewPostgreSQLDB()
		if err != nil {
			return nil, err
		}
		if err := persistence.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		return &Store{
			Posts:       persistence.NewPostRepository(db),
			Credentials: persistence.NewCredentialRepository(db),
			Check:       db.PingContext,
			Close:       func() { _ = db.Close() },
		}, nil
	case configuration.VendorMSSQL:
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			return nil, err
		}
		if err := persistence.EnsureSchemaMSSQL(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure mssql schema: %w", err)
		}
		return &Store{
			Posts:       persistence.NewPostRepositoryMSSQL(db),
			Credentials: persistence.NewCredentialRepositoryMSSQL(db),
			Check:       db.PingContext,
			Close:       func() { _ = db.Close() },
		}, nil
	case configuration.VendorMongo:
		mc := configuration.C.Database.Mongo
		client, err := persistence.NewMongoDb(mc.Host, mc.Port, mc.User, mc.Password, mc.Name)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		db := client.Database(mc.Name)
		if err := persistence.EnsurePostIndexesMongo(ctx, db); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed ensuring post indexes")
		}
		if err := persistence.EnsureCredentialIndexesMongo(ctx, db); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed ensuring credential indexes")
		}
		logger.GetLogger().Info("MongoDB connected successfully")
		return &Store{
			Posts:       persistence.NewPostRepositoryMongo(db),
			Credentials: persistence.NewCredentialRepositoryMongo(db),
			Check:       func(ctx context.Context) error { return client.Ping(ctx, nil) },
			Close:       func() { _ = client.Disconnect(context.Background()) },
		}, nil
	}
	return nil, fmt.Errorf("unknown store vendor %q", vendor)
}
