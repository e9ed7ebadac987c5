// Command vaxtifyd is the attention-control daemon's process
// entrypoint: it loads config, builds the decision engine, starts the
// dbus and browser-extension transports, and runs until signalled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"net/http"

	"go.uber.org/zap"

	"github.com/vaxtify/vaxtifyd/internal/config"
	"github.com/vaxtify/vaxtifyd/internal/engine"
	"github.com/vaxtify/vaxtifyd/internal/ipcbus"
	"github.com/vaxtify/vaxtifyd/internal/vaxlog"
	"github.com/vaxtify/vaxtifyd/internal/vaxmetrics"
	"github.com/vaxtify/vaxtifyd/internal/webext"
)

func main() {
	configPath := flag.String("config", "/etc/vaxtify/vaxtify.yaml", "path to the config file")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9469", "address to serve prometheus metrics on")
	flag.Parse()

	log := vaxlog.New()
	defer log.Sync()

	if err := run(*configPath, *metricsAddr, log); err != nil {
		log.Fatalf("vaxtifyd: %v", err)
	}
}

func run(configPath, metricsAddr string, log *zap.SugaredLogger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := vaxmetrics.New(reg)

	events := make(chan engine.Event, 64)

	bus, err := ipcbus.New(cfg.General.BusName, events, log)
	if err != nil {
		return fmt.Errorf("start ipc bus: %w", err)
	}
	defer bus.Close()

	cmd := vaxmetrics.WrapCommander(bus, metrics)

	restartTime := time.Now()
	e, err := engine.New(configPath, cfg, cmd, time.Now, log, restartTime, nil)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	statusCache := ipcbus.NewStatusCache()
	e.OnReconcile(func(s engine.Stats) {
		active := make(map[string]bool, len(s.KnownPermitNames))
		for _, name := range s.KnownPermitNames {
			_, active[name] = s.PermitRemaining[name]
		}
		metrics.Observe(vaxmetrics.Stats{
			BlockedCount:   len(s.BlockedCategoryNames),
			UnblockedCount: s.UnblockedCount,
			TabsAlive:      s.TabsAlive,
			ActivePermits:  active,
		})
		statusCache.Set(ipcbus.StatusSnapshot{
			BlockedCategories: s.BlockedCategoryNames,
			PermitRemaining:   s.PermitRemaining,
			TabsAlive:         s.TabsAlive,
		})
	})
	bus.UseStatus(statusCache)

	ext, err := webext.Listen(cfg.General.WebextSocket, events, log)
	if err != nil {
		return fmt.Errorf("start webext listener: %w", err)
	}
	defer ext.Close()

	watcher, err := config.Watch(configPath, func() {
		reply := make(chan error, 1)
		events <- engine.ServiceReload{Reply: reply}
		if err := <-reply; err != nil {
			log.Warnf("config hot-reload rejected: %v", err)
		}
	})
	if err != nil {
		log.Warnf("config file watch disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return bus.Run(groupCtx)
	})
	group.Go(func() error {
		go func() {
			<-groupCtx.Done()
			ext.Close()
		}()
		return ext.Run()
	})
	group.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			<-groupCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		stop := make(chan struct{})
		go func() {
			<-groupCtx.Done()
			close(stop)
		}()
		e.Run(events, stop)
		return nil
	})
	log.Infof("vaxtifyd started, bus name %s, webext socket %s", cfg.General.BusName, cfg.General.WebextSocket)
	return group.Wait()
}
