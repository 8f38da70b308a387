package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/config"
	"github.com/BrandonDHaskell/parkgate/internal/db"
	"github.com/BrandonDHaskell/parkgate/internal/grpcapi"
	"github.com/BrandonDHaskell/parkgate/internal/httpapi"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/fee"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/plate"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/serialproto"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/service"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/sqlstore"
	"github.com/BrandonDHaskell/parkgate/internal/recognition"
	"github.com/BrandonDHaskell/parkgate/internal/seriallink"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "parkgate-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dialect := db.SQLite
	if cfg.DBDriver == "postgres" {
		dialect = db.Postgres
	}
	conn, err := db.Open(ctx, db.Config{Dialect: dialect, Path: cfg.DBPath, URL: cfg.DBURL, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer conn.Close()

	writer := db.NewWorker(conn, dialect)
	defer writer.Close()

	if cfg.Env == "dev" && len(cfg.SeedPlates) > 0 {
		n, err := db.SeedDev(ctx, writer, db.SeedDevOptions{Plates: cfg.SeedPlates, EntryAge: 40 * time.Minute})
		if err != nil {
			logger.Fatalf("seed dev: %v", err)
		}
		logger.Printf("seeded %d dev entries", n)
	}

	gateway := sqlstore.New(conn, writer)

	// Policies
	policy, err := fee.New(cfg.FeePolicy, fee.Options{
		RatePerMinute: cfg.RatePerMinute,
		FreeMinutes:   cfg.FreeMinutes,
		BlockMinutes:  cfg.BlockMinutes,
		BlockRate:     cfg.BlockRate,
	})
	if err != nil {
		logger.Fatalf("fee policy: %v", err)
	}
	format, err := serialproto.NewFormat(cfg.MessageFormat)
	if err != nil {
		logger.Fatalf("message format: %v", err)
	}

	// Serial links
	detector := seriallink.NewDetector()
	gateLink := seriallink.New(seriallink.Config{
		Role:        "gate",
		Port:        cfg.GatePort,
		BaudRate:    cfg.BaudRate,
		SettleDelay: cfg.SettleDelay,
		Detector:    detector,
	}, logger)
	kioskLink := seriallink.New(seriallink.Config{
		Role:        "kiosk",
		Port:        cfg.KioskPort,
		BaudRate:    cfg.BaudRate,
		SettleDelay: cfg.SettleDelay,
		Detector:    detector,
	}, logger)
	defer gateLink.Close()
	defer kioskLink.Close()

	var health *grpcapi.Server
	var status seriallink.StatusFunc
	if cfg.GRPCAddr != "" {
		health = grpcapi.NewServer([]string{"gate", "kiosk"}, logger)
		status = health.SetLinkStatus
	}
	monitor := seriallink.NewMonitor([]*seriallink.Link{gateLink, kioskLink}, cfg.ReconnectInterval, status, logger)

	// Dashboard push
	hub := httpapi.NewHub(logger)
	dashboard := service.NewDashboardService(gateway, time.Local)
	broadcaster := service.NewStatsBroadcaster(dashboard, hub, cfg.StatsInterval, logger)

	// Services
	validator := plate.NewValidator(cfg.PlateMarker)
	entries := service.NewEntryService(validator, gateway, broadcaster, logger)
	lane := service.NewExitLane(service.ExitLaneDeps{
		Validator: validator,
		Consensus: plate.NewConsensus(cfg.Quorum),
		Decider:   service.NewExitService(gateway, gateway, cfg.GateLocation, logger),
		Gate:      serialproto.NewGate(gateLink, cfg.GateHold, logger),
		Publisher: hub,
		Notifier:  broadcaster,
		Logger:    logger,
	})
	settlement := serialproto.NewSettlement(kioskLink, gateway, serialproto.SettlementConfig{
		Format:         format,
		Policy:         policy,
		ReadyTimeout:   cfg.ReadyTimeout,
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.PollInterval,
		OnConfirmed:    service.SettlementHook(hub, broadcaster),
	}, logger)

	// Recognition
	var recognizer httpapi.Recognizer
	if cfg.Rekognition {
		r, err := recognition.NewRekognition(ctx, cfg.AWSRegion, float32(cfg.ALPRConfidence), logger)
		if err != nil {
			logger.Fatalf("rekognition: %v", err)
		}
		recognizer = r
	}

	// Workers
	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Printf("%s stopped: %v", name, err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	monitor.Start(ctx)
	broadcaster.Start(ctx)
	run("exit lane", lane.Run)
	if kioskLink.Enabled() {
		run("settlement", settlement.Run)
	} else {
		logger.Printf("kiosk port not configured; settlement disabled")
	}
	if cfg.ALPRCommand != "" {
		alpr := recognition.NewALPRStream(recognition.ALPRConfig{
			Command:       cfg.ALPRCommand,
			Args:          cfg.ALPRArgs,
			MinConfidence: cfg.ALPRConfidence,
		}, lane.Observe, logger)
		run("alpr", alpr.Run)
	}

	// Servers
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Entries:    entries,
		Lane:       lane,
		Dashboard:  dashboard,
		Recognizer: recognizer,
		Hub:        hub,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	if health != nil {
		go func() {
			if err := health.ListenAndServe(cfg.GRPCAddr); err != nil {
				logger.Printf("grpc server error: %v", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if health != nil {
		health.Stop()
	}

	monitor.Stop()
	broadcaster.Stop()
	wg.Wait()
}
