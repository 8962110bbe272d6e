package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tarndt/rawblk/cmd/rawblk/conf"
	"github.com/tarndt/sema"
)

var appName = fmt.Sprintf("RawBlk (%s)", os.Args[0])

//Simple usage: go build && sudo ./rawblk -mode=write -image=disk.img.gz /dev/sdX
func main() {
	cfg := conf.MustGetConfig()

	log.Println(appName + " started.")
	log.Printf(appName+" using config: %s", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if cfg.MetricsListen != "" {
		go serveMetrics(cfg.MetricsListen)
	}

	if failed := runTargets(ctx, cfg, os.Stdout); failed > 0 {
		log.Fatalf(appName+" failed on %d of %d target(s).", failed, len(cfg.Targets))
	}
	log.Println(appName + " terminated normally.")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("Serving Prometheus metrics on http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Warning: Metrics endpoint %q failed: %s", addr, err)
	}
}

//runTargets runs the configured mode on every target, at most cfg.Concurrency
// at a time, and returns how many failed
func runTargets(ctx context.Context, cfg *conf.Config, out io.Writer) (failed int) {
	limit := sema.NewChanSemaCount(cfg.Concurrency)
	errCh := make(chan error, len(cfg.Targets))
	var pending sync.WaitGroup
	var outMu sync.Mutex

	for _, target := range cfg.Targets {
		limit.P()
		pending.Add(1)

		go func(target string) {
			defer func() {
				limit.V()
				pending.Done()
			}()

			report, err := runTarget(ctx, cfg, target)
			if err != nil {
				log.Printf("%s of %q failed: %s", cfg.Mode, target, err)
				errCh <- err
				return
			}
			if report != "" {
				outMu.Lock()
				fmt.Fprintf(out, "%s:\n%s\n", target, report)
				outMu.Unlock()
			}
			log.Printf("%s of %q completed.", cfg.Mode, target)
		}(target)
	}
	pending.Wait()
	close(errCh)

	for range errCh {
		failed++
	}
	return failed
}

//runTarget performs the configured mode on one target and returns any report
// to print on stdout
func runTarget(ctx context.Context, cfg *conf.Config, target string) (string, error) {
	switch cfg.Mode {
	case conf.ModeWrite:
		return "", writeTarget(ctx, cfg, target)
	case conf.ModeZero:
		return "", zeroTarget(ctx, cfg, target)
	case conf.ModeVerify:
		return "", verifyTarget(ctx, cfg, target)
	case conf.ModeClear:
		return "", clearTarget(ctx, cfg, target)
	case conf.ModeRead:
		return readTarget(cfg, target)
	case conf.ModePatch:
		return "", patchTarget(cfg, target)
	case conf.ModeCheck:
		return checkTarget(cfg, target)
	case conf.ModeInfo:
		return infoTarget(cfg, target)
	}
	return "", fmt.Errorf("Bug: unknown mode enum: %d", cfg.Mode)
}
