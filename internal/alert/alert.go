// Package alert fires status-transition webhooks with hysteresis: an offline
// alert on the tick the fail counter first reaches the threshold, an online
// alert on the first successful tick afterwards.
package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/messenger"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

// sendChunkSize bounds concurrent webhook posts per pacing window.
const sendChunkSize = 25

// Threshold returns the consecutive-failure count that triggers the offline
// alert: roughly two minutes of failure, never fewer than two ticks.
func Threshold(queryInterval time.Duration) int {
	n := int(120 / queryInterval.Seconds())
	if n < 2 {
		n = 2
	}
	return n
}

// Engine evaluates alert eligibility once per tick and delivers the due
// alerts to each server's configured webhook.
type Engine struct {
	servers   repositories.ServerRepository
	sender    *webhookSender
	renderer  *messenger.Renderer
	threshold int
	logger    *zap.Logger
}

func NewEngine(servers repositories.ServerRepository, renderer *messenger.Renderer, queryInterval time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		servers:   servers,
		sender:    newWebhookSender(),
		renderer:  renderer,
		threshold: Threshold(queryInterval),
		logger:    logger.Named("alert"),
	}
}

// ShouldAlert reports whether the server is alert-eligible this tick. An
// online alert consumes the sent-offline flag; the caller persists the
// mutated row.
func (e *Engine) ShouldAlert(server *db.Server) bool {
	result := &server.Result.Probe

	if server.Status {
		sent := result.SentOfflineAlert()
		result.SetSentOfflineAlert(false)
		return sent
	}
	return result.FailQueryCount() == e.threshold
}

// Run evaluates every server and sends the due alerts in paced chunks. Rows
// whose flags changed are persisted afterwards so the hysteresis state
// survives restarts.
func (e *Engine) Run(ctx context.Context, servers []db.Server) {
	var due []db.Server
	for i := range servers {
		if e.ShouldAlert(&servers[i]) {
			due = append(due, servers[i])
		}
	}
	if len(due) == 0 {
		return
	}

	start := time.Now()
	for chunkStart := 0; chunkStart < len(due); chunkStart += sendChunkSize {
		if ctx.Err() != nil {
			return
		}

		end := chunkStart + sendChunkSize
		if end > len(due) {
			end = len(due)
		}

		windowStart := time.Now()
		var wg sync.WaitGroup
		for i := chunkStart; i < end; i++ {
			wg.Add(1)
			go func(server *db.Server) {
				defer wg.Done()
				e.send(ctx, server)
			}(&due[i])
		}
		wg.Wait()

		if end < len(due) {
			if remaining := time.Second - time.Since(windowStart); remaining > 0 {
				select {
				case <-time.After(remaining):
				case <-ctx.Done():
					return
				}
			}
		}
	}

	if err := e.servers.UpdateServers(ctx, due); err != nil {
		e.logger.Warn("persist alert flags", zap.Error(err))
	}

	e.logger.Info("alerts sent", zap.Int("count", len(due)), zap.Duration("elapsed", time.Since(start)))
}

// send posts one alert. A missing webhook URL skips silently; failures are
// logged and re-evaluated by the counters on later ticks.
func (e *Engine) send(ctx context.Context, server *db.Server) {
	if !server.Status {
		// Mark before sending so a duplicate alert cannot fire even if the
		// delivery outcome is ambiguous.
		server.Result.SetSentOfflineAlert(true)
	}

	url, _ := server.StyleData["_alert_webhook_url"].(string)
	if url == "" {
		return
	}
	content, _ := server.StyleData["_alert_content"].(string)

	embed := e.renderer.RenderAlert(server, server.Status)
	if err := e.sender.Send(ctx, url, content, embed); err != nil {
		e.logger.Debug("send alert",
			zap.String("game_id", server.GameID),
			zap.String("address", server.Address),
			zap.Int("query_port", server.QueryPort),
			zap.Error(err))
		return
	}

	e.logger.Info("alert sent",
		zap.String("game_id", server.GameID),
		zap.String("address", server.Address),
		zap.Int("query_port", server.QueryPort),
		zap.Bool("online", server.Status))
}
