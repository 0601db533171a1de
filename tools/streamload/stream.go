package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
)

type stats struct {
	connected    atomic.Int64
	connectErrs  atomic.Int64
	streamErrs   atomic.Int64
	transactions atomic.Int64
	noData       atomic.Int64
	heartbeats   atomic.Int64
}

type statsSnapshot struct {
	connected, connectErrs, streamErrs int64
	transactions, noData, heartbeats   int64
}

func (s *stats) snapshot() statsSnapshot {
	return statsSnapshot{
		connected:    s.connected.Load(),
		connectErrs:  s.connectErrs.Load(),
		streamErrs:   s.streamErrs.Load(),
		transactions: s.transactions.Load(),
		noData:       s.noData.Load(),
		heartbeats:   s.heartbeats.Load(),
	}
}

func subscribe(ctx context.Context, client *http.Client, url string, resume int, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	if resume > 0 {
		req.Header.Set("Last-Event-ID", strconv.Itoa(resume))
	}

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}
	st.connected.Add(1)

	if err := readStream(resp.Body, st); err != nil && ctx.Err() == nil {
		st.streamErrs.Add(1)
	}
}

// readStream counts events until the body ends.
func readStream(body io.Reader, st *stats) error {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			st.heartbeats.Add(1)
		case line == "event: transaction":
			st.transactions.Add(1)
		case line == "event: no_data":
			st.noData.Add(1)
		}
	}
	return scanner.Err()
}
