package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/opsdocs/signoff/internal/config"
	"github.com/opsdocs/signoff/internal/infra/database"
	"github.com/opsdocs/signoff/internal/infra/gateway"
	"github.com/opsdocs/signoff/internal/infra/repository"
	"github.com/opsdocs/signoff/internal/present/rest"
	"github.com/opsdocs/signoff/internal/present/rest/middleware"
	"github.com/opsdocs/signoff/internal/service"
	"github.com/opsdocs/signoff/internal/usecase"
)

func main() {
	configPath := flag.String("config", "/etc/signoff/config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	docRepo := repository.NewDocumentRepository(db)
	invRepo := repository.NewInvitationRepository(db)
	permRepo := repository.NewPermissionRepository(db, mc)

	identity := gateway.NewIdentityGateway(conf.Identity.Endpoint)
	signal := service.NewSignalService(rdb)
	activity := service.NewActivityService(db)

	permUC := usecase.NewPermissionUsecase(permRepo, docRepo, signal, activity)
	documentUC := usecase.NewDocumentUsecase(docRepo, permUC, identity, activity)
	workflowUC := usecase.NewWorkflowUsecase(docRepo, permUC, signal, activity)
	invitationUC := usecase.NewInvitationUsecase(invRepo, docRepo, permUC, identity, signal, activity)

	// Periodic sweep keeps stale pending invitations from piling up. Expiry
	// itself is always enforced at read time.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			n, err := invitationUC.ExpireStale(context.Background())
			if err != nil {
				slog.Error("invitation sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				slog.Info("expired stale invitations", slog.Int64("count", n))
			}
		}
	}()

	auth := service.NewAuthService(conf.Identity.JWTSecret, identity)
	authMiddleware := middleware.NewAuthMiddleware(auth)

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("signoff"))
	}
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(authMiddleware.IdentifyActor)

	handler := rest.NewHandler(documentUC, workflowUC, invitationUC, permUC, signal)
	handler.RegisterRoutes(e, authMiddleware)

	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTracer(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("signoff"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
