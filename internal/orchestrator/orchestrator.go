// Package orchestrator drives evaluation runs: it pulls snapshots from the
// data providers, walks each item through normalization, metric computation,
// prompting and reply validation, and accumulates decisions on the session.
// Items are processed sequentially because an item's decision may feed later
// items' recent-loot counts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/raidtools/lootcouncil/internal/config"
	"github.com/raidtools/lootcouncil/internal/domain/metric"
	"github.com/raidtools/lootcouncil/internal/domain/model"
	"github.com/raidtools/lootcouncil/internal/domain/normalize"
	"github.com/raidtools/lootcouncil/internal/domain/policy"
	"github.com/raidtools/lootcouncil/internal/llm"
	"github.com/raidtools/lootcouncil/internal/prompt"
	"github.com/raidtools/lootcouncil/internal/source"
	"github.com/raidtools/lootcouncil/pkg/logger"
	"github.com/raidtools/lootcouncil/pkg/metrics"
)

// warmer is implemented by parse sources that support prefetching. The
// orchestrator warms the next item's pool while the current model call is
// in flight.
type warmer interface {
	Warm(ctx context.Context, ids []model.Identity, zone string) error
}

// Orchestrator runs evaluation sessions against a fixed set of providers.
type Orchestrator struct {
	cfg    *config.Config
	guild  source.GuildSource
	parses source.ParseSource
	gear   source.GearSource
	client llm.Client

	log        logger.Logger
	limiter    *rate.Limiter
	onProgress func(Progress)

	// Provider snapshots fetched once per orchestrator lifetime (one run).
	// A failed fetch is not memoized, so the next item retries it.
	tmbSnapshot  *model.TMBSnapshot
	gearSnapshot *model.GearSnapshot
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a callback invoked after every item reaches a
// terminal state, and once per skipped item on cancellation.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithLogger overrides the default named logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New wires an Orchestrator. The rate limiter paces model calls by the
// configured delay; retries share the same pacing.
func New(cfg *config.Config, guild source.GuildSource, parses source.ParseSource, gear source.GearSource, client llm.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		guild:  guild,
		parses: parses,
		gear:   gear,
		client: client,
		log:    logger.Named("orchestrator"),
	}
	if cfg.LLMCallDelay > 0 {
		o.limiter = rate.NewLimiter(rate.Every(cfg.LLMCallDelay), 1)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunItem evaluates a single item and returns its decision.
func (o *Orchestrator) RunItem(ctx context.Context, item model.Item) (*model.Decision, error) {
	session := NewSession(o.cfg, []model.Item{item})
	if err := o.Run(ctx, session); err != nil {
		return nil, err
	}
	results := session.Results()
	if len(results) == 0 {
		return nil, fmt.Errorf("item %s produced no result", item.Name)
	}
	r := results[0]
	switch r.State {
	case StateCompleted:
		return r.Decision, nil
	case StateFailed:
		return nil, r.Err
	}
	return nil, fmt.Errorf("item %s skipped: session cancelled", item.Name)
}

// Run processes the session's items in order. Configuration and policy
// problems abort before any item is touched; per-item failures are recorded
// on the session and never propagate past this boundary. Cancellation is
// honored between items: completed decisions are preserved and remaining
// items are marked skipped.
func (o *Orchestrator) Run(ctx context.Context, session *Session) error {
	cfg := &session.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	policyText, err := o.encodePolicy(cfg)
	if err != nil {
		return err
	}

	metrics.RecordSessionStarted()
	o.log.Info(ctx, "session started",
		logger.String("session_id", session.ID),
		logger.Int("items", len(session.Items)),
		logger.String("reference", session.Reference.Format("2006-01-02")),
	)

	for i, item := range session.Items {
		if ctx.Err() != nil || session.Cancelled() {
			o.skipRemaining(ctx, session, session.Items[i:])
			break
		}

		var next *model.Item
		if i+1 < len(session.Items) {
			next = &session.Items[i+1]
		}

		session.setPhase(item, StatePending)
		decision, err := o.evaluateItem(ctx, session, item, policyText, next)
		var p Progress
		if err != nil {
			kind := errorKind(err)
			metrics.RecordItemFailed(kind)
			o.log.Warn(ctx, "item failed",
				logger.String("item", item.Name),
				logger.String("kind", kind),
				logger.Error(err),
			)
			p = session.recordResult(ItemResult{Item: item, State: StateFailed, Err: err})
		} else {
			metrics.RecordItemCompleted()
			o.log.Info(ctx, "item completed",
				logger.String("item", item.Name),
				logger.String("winner", decision.Winner.String()),
			)
			p = session.recordResult(ItemResult{Item: item, State: StateCompleted, Decision: decision})
		}
		o.reportProgress(p)
	}

	o.log.Info(ctx, "session finished",
		logger.String("session_id", session.ID),
		logger.Int("completed", session.Progress().Completed),
		logger.Int("failed", session.Progress().Failed),
		logger.Int("skipped", session.Progress().Skipped),
	)
	return nil
}

func (o *Orchestrator) encodePolicy(cfg *config.Config) (string, error) {
	order := make([]model.Metric, 0, len(cfg.MetricOrder))
	for _, m := range cfg.MetricOrder {
		order = append(order, model.Metric(m))
	}
	return policy.Encode(policy.Input{
		Mode:        cfg.PolicyMode,
		MetricOrder: order,
		Enabled: map[model.Metric]bool{
			model.MetricAttendance:       cfg.ShowAttendance,
			model.MetricRecentLoot:       cfg.ShowRecentLoot,
			model.MetricWishlistPosition: cfg.ShowWishlistPosition,
			model.MetricParses:           cfg.ShowParses,
			model.MetricIlvlUpgrade:      cfg.ShowIlvlUpgrade,
			model.MetricTierTokens:       cfg.ShowTierTokens,
		},
		CustomText:             cfg.CustomPolicyText,
		MaxChars:               cfg.CustomPolicyMaxChars,
		TankPriority:           cfg.TankPriority,
		MainsOverAlts:          cfg.MainsOverAlts,
		ShowAltStatus:          cfg.ShowAltStatus,
		AttendanceLookbackDays: cfg.AttendanceLookbackDays,
		LootLookbackDays:       cfg.LootLookbackDays,
		ParseZoneLabel:         cfg.ParseZoneLabel,
	})
}

// evaluateItem walks one item through the pipeline. The returned error is
// recorded on the session by the caller; it never aborts the batch.
func (o *Orchestrator) evaluateItem(ctx context.Context, session *Session, item model.Item, policyText string, next *model.Item) (*model.Decision, error) {
	cfg := &session.Config

	session.setPhase(item, StateFetching)
	tmb, gear, err := o.snapshots(ctx, cfg)
	if err != nil {
		return nil, err
	}
	parseSnap, err := o.parsesFor(ctx, cfg, tmb, item)
	if err != nil {
		return nil, err
	}

	session.setPhase(item, StateNormalizing)
	profiles, warnings := normalize.Normalize(*tmb, parseSnap, *gear)
	for _, w := range session.addWarnings(warnings) {
		metrics.RecordDataQualityWarning()
		o.log.Warn(ctx, "data quality warning",
			logger.String("candidate", w.Identity.String()),
			logger.String("reason", w.Reason),
		)
	}

	eligible := normalize.EligibleFor(profiles, item, session.Reference, cfg.ShowAltStatus)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoCandidates, item.Name)
	}
	metrics.RecordCandidates(len(eligible))

	if item.PriorityNote == "" {
		item.PriorityNote = tmb.ItemNotes[item.ID]
	}

	// Metric sets are computed here, after all earlier decisions of this
	// session have landed, so in-session awards are visible.
	windows := metric.Windows{
		Reference:              session.Reference,
		AttendanceLookbackDays: cfg.AttendanceLookbackDays,
		LootLookbackDays:       cfg.LootLookbackDays,
		ParseZone:              cfg.ParseZone,
		ShowAttendance:         cfg.ShowAttendance,
		ShowRecentLoot:         cfg.ShowRecentLoot,
		ShowWishlistPosition:   cfg.ShowWishlistPosition,
		ShowParses:             cfg.ShowParses,
		ShowIlvlUpgrade:        cfg.ShowIlvlUpgrade,
		ShowTierTokens:         cfg.ShowTierTokens,
		TankPriority:           cfg.TankPriority,
	}
	sets := make(map[string]model.MetricSet, len(eligible))
	for _, cand := range eligible {
		var sessionLoot []model.LootEntry
		if cfg.SessionLootCarryover {
			sessionLoot = session.allocationsFor(cand.Identity)
		}
		sets[cand.Identity.Key()] = metric.Compute(cand, item, windows, sessionLoot)
	}

	p, err := prompt.Build(item, eligible, sets, policyText, prompt.BuildOptions{
		MaxChars:         cfg.PromptMaxChars,
		SessionMode:      len(session.Items) > 1 && cfg.SessionLootCarryover,
		ShowAltStatus:    cfg.ShowAltStatus,
		ShowNotes:        cfg.ShowRaiderNotes,
		LootLookbackDays: cfg.LootLookbackDays,
		ParseZoneLabel:   cfg.ParseZoneLabel,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordPromptChars(len(p.User))

	// Warm the next item's parse pool while the model call is in flight.
	o.prefetchNext(ctx, cfg, tmb, next)

	parsed, err := o.evaluatePrompt(ctx, session, item, p)
	if err != nil {
		return nil, err
	}

	decision := &model.Decision{
		ID:        uuid.NewString(),
		Item:      item,
		Winner:    parsed.Winner,
		Ranked:    parsed.Ranked,
		CreatedAt: time.Now(),
		Metrics:   sets,
	}

	if cfg.SessionLootCarryover {
		entry := model.LootEntry{Date: session.Reference, ItemID: item.ID, TierClass: item.TierClass}
		if set, ok := sets[parsed.Winner.Key()]; ok {
			entry.Offspec = set.Offspec
		}
		session.allocate(parsed.Winner, entry)
	}
	return decision, nil
}

// snapshots fetches the guild and gear snapshots once and reuses them for
// every item. Failures are not memoized; the next item retries the fetch.
func (o *Orchestrator) snapshots(ctx context.Context, cfg *config.Config) (*model.TMBSnapshot, *model.GearSnapshot, error) {
	if o.tmbSnapshot == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
		tmb, err := o.guild.FetchGuildData(fetchCtx, cfg.GuildID)
		cancel()
		if err != nil {
			return nil, nil, err
		}
		o.tmbSnapshot = &tmb
	}

	if o.gearSnapshot == nil {
		if cfg.GearProviderEnabled && o.gear != nil {
			fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
			gear, err := o.gear.FetchEquipped(fetchCtx, wishlistedIdentities(o.tmbSnapshot))
			cancel()
			if err != nil {
				return nil, nil, err
			}
			o.gearSnapshot = &gear
		} else {
			o.gearSnapshot = &model.GearSnapshot{}
		}
	}
	return o.tmbSnapshot, o.gearSnapshot, nil
}

// parsesFor fetches zone percentiles for the characters wanting the item.
func (o *Orchestrator) parsesFor(ctx context.Context, cfg *config.Config, tmb *model.TMBSnapshot, item model.Item) (model.ParseSnapshot, error) {
	if !cfg.ShowParses || o.parses == nil {
		return model.ParseSnapshot{Zone: cfg.ParseZone}, nil
	}
	ids := wantingIdentities(tmb, item.ID)
	if len(ids) == 0 {
		return model.ParseSnapshot{Zone: cfg.ParseZone}, nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()
	return o.parses.FetchParses(fetchCtx, ids, cfg.ParseZone)
}

// prefetchNext warms the parse cache for the next item's wanting
// characters. Best effort: errors are logged and the next item's own fetch
// retries.
func (o *Orchestrator) prefetchNext(ctx context.Context, cfg *config.Config, tmb *model.TMBSnapshot, next *model.Item) {
	if next == nil || !cfg.ShowParses {
		return
	}
	w, ok := o.parses.(warmer)
	if !ok {
		return
	}
	ids := wantingIdentities(tmb, next.ID)
	if len(ids) == 0 {
		return
	}
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
		if err := w.Warm(warmCtx, ids, cfg.ParseZone); err != nil {
			o.log.Debug(warmCtx, "parse prefetch failed", logger.Error(err))
		}
	}()
}

// evaluatePrompt runs the model call with transient-error retries, then
// validates the reply, allowing one corrective round trip on a malformed
// response.
func (o *Orchestrator) evaluatePrompt(ctx context.Context, session *Session, item model.Item, p *prompt.Prompt) (*prompt.ParsedDecision, error) {
	cfg := &session.Config
	userPrompt := p.User
	correctiveUsed := false

	for {
		session.setPhase(item, StateEvaluating)
		reply, err := o.complete(ctx, cfg, p.System, userPrompt)
		if err != nil {
			return nil, err
		}

		session.setPhase(item, StateParsing)
		parsed, err := prompt.Parse(reply, p.Candidates)
		if err == nil {
			return parsed, nil
		}
		var malformed *prompt.MalformedResponseError
		if !errors.As(err, &malformed) || correctiveUsed {
			return nil, err
		}
		correctiveUsed = true
		metrics.RecordLLMRetry()
		o.log.Warn(ctx, "malformed reply, retrying with corrective instruction",
			logger.String("reason", malformed.Reason),
		)
		userPrompt = p.User + prompt.Corrective(malformed.Reason)
	}
}

// complete paces and retries the model call. Transient failures, rate
// limits and timeouts retry with a growing delay up to the configured
// budget.
func (o *Orchestrator) complete(ctx context.Context, cfg *config.Config, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.LLMMaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordLLMRetry()
			if err := sleepCtx(ctx, time.Duration(attempt)*cfg.LLMCallDelay); err != nil {
				return "", lastErr
			}
		}
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		start := time.Now()
		reply, err := o.client.Complete(ctx, systemPrompt, userPrompt)
		metrics.RecordLLMRequestSeconds(time.Since(start).Seconds())
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			return "", err
		}
		o.log.Warn(ctx, "model call failed, will retry",
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	return "", lastErr
}

func (o *Orchestrator) skipRemaining(ctx context.Context, session *Session, remaining []model.Item) {
	for _, item := range remaining {
		metrics.RecordItemSkipped()
		p := session.recordResult(ItemResult{Item: item, State: StateSkipped})
		o.reportProgress(p)
	}
	o.log.Info(ctx, "session cancelled",
		logger.String("session_id", session.ID),
		logger.Int("skipped", len(remaining)),
	)
}

func (o *Orchestrator) reportProgress(p Progress) {
	if o.onProgress != nil {
		o.onProgress(p)
	}
}

// wantingIdentities lists the characters whose wishlist carries the item.
func wantingIdentities(tmb *model.TMBSnapshot, itemID int64) []model.Identity {
	var ids []model.Identity
	for _, ch := range tmb.Characters {
		for _, w := range ch.Wishlist {
			if w.ItemID == itemID {
				ids = append(ids, model.Identity{Name: ch.Name, Realm: ch.Realm})
				break
			}
		}
	}
	return ids
}

// wishlistedIdentities lists every character with at least one wishlist
// entry; that is the pool the gear provider is asked about.
func wishlistedIdentities(tmb *model.TMBSnapshot) []model.Identity {
	var ids []model.Identity
	for _, ch := range tmb.Characters {
		if len(ch.Wishlist) == 0 {
			continue
		}
		ids = append(ids, model.Identity{Name: ch.Name, Realm: ch.Realm})
	}
	return ids
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
