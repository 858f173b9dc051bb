package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"linkedpost/domain/dto"
	"linkedpost/domain/model"
	"linkedpost/infrastructure/logger"
)

// Poller is the fallback trigger: it POSTs the scheduled-post endpoint right
// away and then on every Interval until stopped.
type Poller struct {
	Interval time.Duration
	Endpoint string
	// OnResults runs only when a sweep reported at least one result.
	OnResults func([]model.SweepResult)
	Client    *http.Client
	// Header is added to every trigger request.
	Header http.Header

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs the loop in a goroutine. A second Start while running is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		p.Run(ctx)
	}(p.done)
}

// Stop cancels the loop and waits for the in-flight poll to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	p.poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	resp, err := p.Trigger(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.GetLogger().WithField("error", err).Warn("Scheduled post poll failed")
		}
		return
	}
	if len(resp.Results) > 0 && p.OnResults != nil {
		p.OnResults(resp.Results)
	}
}

// Trigger performs one POST and returns the decoded response. Message carries
// the server's processed count, which includes posts skipped without a result.
func (p *Poller) Trigger(ctx context.Context) (*dto.TriggerResponse, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range p.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trigger returned status %d: %s", resp.StatusCode, body)
	}
	out := &dto.TriggerResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, err
	}
	return out, nil
}
