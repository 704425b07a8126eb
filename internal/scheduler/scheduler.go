// Package scheduler drives the query tick: refresh strategy-shared state,
// fan probes out over distinct endpoints in bounded chunks, persist the
// results, then run the alert, message-edit and presence tasks in parallel.
// It wraps gocron; the tick job runs in singleton mode so a slow tick delays
// the next instead of piling up.
package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gswatch-io/gswatch/internal/alert"
	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/config"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/messenger"
	"github.com/gswatch-io/gswatch/internal/presence"
	"github.com/gswatch-io/gswatch/internal/probe"
	"github.com/gswatch-io/gswatch/internal/protocol"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

// Scheduler owns the periodic jobs of the service.
type Scheduler struct {
	cron      gocron.Scheduler
	servers   repositories.ServerRepository
	metrics   repositories.MetricRepository
	registry  *protocol.Registry
	games     *catalog.Catalog
	refresher *messenger.Refresher
	alerts    *alert.Engine
	presence  *presence.Task
	cfg       *config.Config
	logger    *zap.Logger

	mu        sync.Mutex
	tickIndex int
}

func New(
	servers repositories.ServerRepository,
	metrics repositories.MetricRepository,
	registry *protocol.Registry,
	games *catalog.Catalog,
	refresher *messenger.Refresher,
	alerts *alert.Engine,
	presenceTask *presence.Task,
	cfg *config.Config,
	logger *zap.Logger,
) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create gocron scheduler: %w", err)
	}

	return &Scheduler{
		cron:      cron,
		servers:   servers,
		metrics:   metrics,
		registry:  registry,
		games:     games,
		refresher: refresher,
		alerts:    alerts,
		presence:  presenceTask,
		cfg:       cfg,
		logger:    logger.Named("scheduler"),
	}, nil
}

// Start registers the periodic jobs and starts the cron loop. ctx bounds the
// work of every tick; cancelling it stops in-flight probes and edits.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.QueryInterval),
		gocron.NewTask(func() { s.Tick(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("scheduler: register query job: %w", err)
	}

	if s.cfg.HerokuAppName != "" {
		_, err := s.cron.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() { s.herokuKeepalive(ctx) }),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("scheduler: register keepalive job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.QueryInterval),
		zap.Int("chunk_size", s.cfg.ChunkSize))
	return nil
}

// Stop shuts the cron loop down, waiting for a running tick to finish.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler: shutdown: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// Tick runs one full query cycle. Every phase converts its own failures to
// logged errors; a tick never brings the process down.
func (s *Scheduler) Tick(ctx context.Context) {
	defer recoverPhase(s.logger, "tick")

	start := time.Now()
	ticksTotal.Inc()

	s.preQueryPhase(ctx)

	results, probed := s.fanOutPhase(ctx)
	s.persistPhase(ctx, results)
	s.postQueryPhase(ctx)

	tickDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("tick complete",
		zap.Int("targets", probed),
		zap.Duration("elapsed", time.Since(start)))
}

// preQueryPhase refreshes shared strategy state (master snapshots, OAuth
// tokens) for strategies that have at least one monitored server. Failures
// are logged only; the affected probes fail on their own downstream.
func (s *Scheduler) preQueryPhase(ctx context.Context) {
	defer recoverPhase(s.logger, "pre-query")

	counts, err := s.servers.CountPerGame(ctx)
	if err != nil {
		s.logger.Warn("pre-query: count per game", zap.Error(err))
		return
	}

	protocolCounts := map[string]int{}
	for gameID, n := range counts {
		if game, ok := s.games.Find(gameID); ok {
			protocolCounts[game.Protocol] += n
		}
	}

	var wg sync.WaitGroup
	for _, strategy := range s.registry.PreQueryStrategies() {
		if protocolCounts[strategy.Name()] == 0 {
			continue
		}

		wg.Add(1)
		go func(strategy protocol.Strategy) {
			defer wg.Done()
			defer recoverPhase(s.logger, "pre-query")

			callCtx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
			defer cancel()

			if err := strategy.PreQuery(callCtx); err != nil {
				s.logger.Debug("pre-query failed", zap.String("protocol", strategy.Name()), zap.Error(err))
				return
			}
			s.logger.Debug("pre-query ok", zap.String("protocol", strategy.Name()))
		}(strategy)
	}
	wg.Wait()
}

// fanOutPhase probes every distinct endpoint in chunks. It returns one row
// per probed target carrying the new status and result.
func (s *Scheduler) fanOutPhase(ctx context.Context) ([]db.Server, int) {
	defer recoverPhase(s.logger, "fan-out")

	targets, err := s.servers.DistinctServers(ctx)
	if err != nil {
		s.logger.Error("fan-out: distinct servers", zap.Error(err))
		return nil, 0
	}

	targets = s.filterDisabled(targets)

	results := make([]db.Server, len(targets))
	for chunkStart := 0; chunkStart < len(targets); chunkStart += s.cfg.ChunkSize {
		if ctx.Err() != nil {
			break
		}

		end := chunkStart + s.cfg.ChunkSize
		if end > len(targets) {
			end = len(targets)
		}

		g, chunkCtx := errgroup.WithContext(ctx)
		for i := chunkStart; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = s.probeTarget(chunkCtx, &targets[i])
				return nil
			})
		}
		g.Wait()
	}

	return results, len(targets)
}

// filterDisabled drops targets that have been offline longer than the
// configured auto-disable window. Their rows are left untouched.
func (s *Scheduler) filterDisabled(targets []repositories.ProbeTarget) []repositories.ProbeTarget {
	if s.cfg.DisableAfterDays <= 0 {
		return targets
	}

	cutoff := time.Now().Add(-time.Duration(s.cfg.DisableAfterDays) * 24 * time.Hour).Unix()
	kept := targets[:0]
	var skipped int

	for _, target := range targets {
		since := target.Result.OfflineSince()
		if since > 0 && since <= cutoff {
			skipped++
			continue
		}
		kept = append(kept, target)
	}

	if skipped > 0 {
		s.logger.Info("auto-disabled targets skipped", zap.Int("count", skipped))
	}
	return kept
}

// probeTarget queries one endpoint and threads the bookkeeping counters
// across ticks: success replaces the result wholesale (keeping the alert
// flag), failure keeps the last result and bumps the counters.
func (s *Scheduler) probeTarget(ctx context.Context, target *repositories.ProbeTarget) db.Server {
	row := db.Server{
		GameID:     target.GameID,
		Address:    target.Address,
		QueryPort:  target.QueryPort,
		QueryExtra: target.QueryExtra,
		Status:     target.Status,
		Result:     target.Result,
	}

	result, err := s.query(ctx, target)
	if err != nil {
		probesTotal.WithLabelValues("failure").Inc()
		row.Status = false
		row.Result.MarkOffline(time.Now().Unix())
		s.logger.Debug("probe failed",
			zap.String("game_id", target.GameID),
			zap.String("address", target.Address),
			zap.Int("query_port", target.QueryPort),
			zap.Error(err))
		return row
	}

	probesTotal.WithLabelValues("success").Inc()
	result.CarryAlertFlag(&target.Result.Probe)
	row.Status = true
	row.Result = db.ProbeResult{Probe: *result}
	return row
}

func (s *Scheduler) query(ctx context.Context, target *repositories.ProbeTarget) (*probe.Probe, error) {
	game, ok := s.games.Find(target.GameID)
	if !ok {
		return nil, fmt.Errorf("game %q: %w", target.GameID, probe.ErrInvalidGame)
	}

	strategy, err := s.registry.Find(game.Protocol)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	extra := make(map[string]string, len(target.QueryExtra))
	for k, v := range target.QueryExtra {
		extra[k] = fmt.Sprint(v)
	}

	ep := protocol.Endpoint{Host: target.Address, Port: target.QueryPort}
	result, err := strategy.Query(queryCtx, ep, extra)
	if err != nil {
		if queryCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%s: %w", ep.Addr(), probe.ErrTimeout)
		}
		return nil, err
	}
	return result, nil
}

// persistPhase batch-writes results and metric samples.
func (s *Scheduler) persistPhase(ctx context.Context, results []db.Server) {
	defer recoverPhase(s.logger, "persist")

	if len(results) == 0 {
		return
	}

	if err := s.servers.UpdateServers(ctx, results); err != nil {
		s.logger.Error("persist: update servers", zap.Error(err))
	}

	if s.cfg.MetricsEnable {
		if err := s.metrics.UpdateMetrics(ctx, results, s.cfg.MetricsRecordLimit); err != nil {
			s.logger.Error("persist: update metrics", zap.Error(err))
		}
	}
}

// postQueryPhase runs alerts, message edits and the presence update in
// parallel over the freshly persisted server list.
func (s *Scheduler) postQueryPhase(ctx context.Context) {
	defer recoverPhase(s.logger, "post-query")

	servers, err := s.servers.AllServers(ctx, repositories.ServerFilter{})
	if err != nil {
		s.logger.Error("post-query: load servers", zap.Error(err))
		return
	}

	s.mu.Lock()
	tickIndex := s.tickIndex
	s.tickIndex++
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		defer recoverPhase(s.logger, "alert")
		s.alerts.Run(ctx, servers)
	}()
	go func() {
		defer wg.Done()
		defer recoverPhase(s.logger, "edit-messages")
		s.refresher.EditMessages(ctx, servers)
	}()
	go func() {
		defer wg.Done()
		defer recoverPhase(s.logger, "presence")
		s.presence.Run(ctx, tickIndex, servers)
	}()
	wg.Wait()
}

// herokuKeepalive pings the web dyno so the platform does not idle it out.
func (s *Scheduler) herokuKeepalive(ctx context.Context) {
	defer recoverPhase(s.logger, "keepalive")

	url := fmt.Sprintf("https://%s.herokuapp.com", s.cfg.HerokuAppName)

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.logger.Warn("keepalive request failed", zap.String("url", url), zap.Error(err))
		return
	}
	resp.Body.Close()
	s.logger.Debug("keepalive ok", zap.String("url", url))
}

// recoverPhase converts a panic inside a tick phase into a logged error.
func recoverPhase(logger *zap.Logger, phase string) {
	if r := recover(); r != nil {
		logger.Error("phase panic", zap.String("phase", phase), zap.Any("panic", r))
	}
}
