// Command streamload opens many concurrent subscriptions to the transaction
// stream and reports how many events each kind of line delivered.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	url := flag.String("url", "http://localhost:5000/transactions/stream", "transaction stream URL")
	conns := flag.Int("conns", 500, "number of concurrent subscribers")
	dur := flag.Duration("dur", time.Minute, "test duration, 0 runs until interrupted")
	perSecond := flag.Float64("rate", 200, "new subscribers per second")
	resume := flag.Int("resume", 0, "Last-Event-ID sent by every subscriber")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if *conns <= 0 || *perSecond <= 0 {
		logger.Fatal("conns and rate must be positive", zap.Int("conns", *conns), zap.Float64("rate", *perSecond))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *dur > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *dur)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     *conns + 10,
			MaxIdleConnsPerHost: *conns + 10,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting stream load",
		zap.String("url", *url),
		zap.Int("conns", *conns),
		zap.Duration("duration", *dur),
		zap.Float64("rate", *perSecond))

	st := &stats{}
	start := time.Now()
	limiter := rate.NewLimiter(rate.Limit(*perSecond), 1)

	var wg sync.WaitGroup
	go report(ctx, logger, st, start)

	for i := 0; i < *conns; i++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, *url, *resume, st)
		}()
	}

	wg.Wait()
	snap := st.snapshot()
	elapsed := time.Since(start)
	logger.Info("done",
		zap.Int64("connected", snap.connected),
		zap.Int64("connect_errs", snap.connectErrs),
		zap.Int64("stream_errs", snap.streamErrs),
		zap.Int64("transactions", snap.transactions),
		zap.Int64("no_data", snap.noData),
		zap.Int64("heartbeats", snap.heartbeats),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
		zap.Float64("transactions_per_sec", float64(snap.transactions)/elapsed.Seconds()))
}

func report(ctx context.Context, logger *zap.Logger, st *stats, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := st.snapshot()
			logger.Info("status",
				zap.Int64("connected", snap.connected),
				zap.Int64("connect_errs", snap.connectErrs),
				zap.Int64("stream_errs", snap.streamErrs),
				zap.Int64("transactions", snap.transactions),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
