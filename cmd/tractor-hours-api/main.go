// Command tractor-hours-api serves the fleet dashboard API: file uploads,
// snapshot persistence, exports, and chart data.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/louisbat101/agtegra-tractors-hours/internal/config"
	"github.com/louisbat101/agtegra-tractors-hours/internal/metrics"
	"github.com/louisbat101/agtegra-tractors-hours/internal/metrics/datadog"
	"github.com/louisbat101/agtegra-tractors-hours/internal/pipeline"
	"github.com/louisbat101/agtegra-tractors-hours/internal/server"
	"github.com/louisbat101/agtegra-tractors-hours/internal/store"

	// register all store backends with the factory.
	_ "github.com/louisbat101/agtegra-tractors-hours/internal/store/all"
)

func main() {
	var (
		cfgPath  string
		validate bool
	)
	flag.StringVar(&cfgPath, "config", "", "app config JSON path (empty uses built-in defaults)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	app := config.Default()
	if cfgPath != "" {
		var err error
		app, err = config.LoadApp(cfgPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	issues := config.ValidateApp(app)
	for _, iss := range issues {
		log.Printf("%s", iss)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch app.Metrics.Backend {
	case "datadog", "dd":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    "tractor_hours_api",
			Tags:       app.Metrics.Tags,
			FlushEvery: time.Duration(app.Metrics.FlushSeconds) * time.Second,
		})
		if err != nil {
			log.Printf("metrics: datadog init failed: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=datadog tags=%v", app.Metrics.Tags)
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: close error: %v", err)
				}
			}()
		}
	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled")
		}
	}

	var st store.Store
	if app.Store.Kind != "" {
		var err error
		st, err = store.New(ctx, store.Config{Kind: app.Store.Kind, DSN: app.Store.DSN})
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer st.Close()
		if err := st.Ensure(ctx); err != nil {
			log.Fatalf("store: ensure schema: %v", err)
		}
		log.Printf("store: kind=%s", app.Store.Kind)
	} else {
		log.Printf("store: persistence disabled")
	}

	if !*verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if *verbose {
		r.Use(gin.Logger())
	}
	if err := r.SetTrustedProxies(app.TrustedProxies); err != nil {
		log.Fatalf("trusted proxies: %v", err)
	}

	proc := &pipeline.Processor{Options: app.Ingest}
	if *verbose {
		proc.Logf = log.Printf
	}
	h := server.NewHandler(proc, st, app.MaxUploadMB<<20)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              app.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", app.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}

	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
}
