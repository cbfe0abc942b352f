package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/raidtools/lootcouncil/internal/config"
	"github.com/raidtools/lootcouncil/internal/domain/model"
	"github.com/raidtools/lootcouncil/internal/llm"
	"github.com/raidtools/lootcouncil/internal/orchestrator"
)

// fakeGuild serves a fixed snapshot.
type fakeGuild struct {
	snapshot model.TMBSnapshot
	err      error
	fetches  int
}

func (f *fakeGuild) FetchGuildData(_ context.Context, _ string) (model.TMBSnapshot, error) {
	f.fetches++
	if f.err != nil {
		return model.TMBSnapshot{}, f.err
	}
	return f.snapshot, nil
}

type call struct {
	system string
	user   string
}

// scriptedClient replies from a fixed script: strings are returned as
// completions, errors are returned as failures.
type scriptedClient struct {
	script []any
	calls  []call
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls = append(c.calls, call{system: systemPrompt, user: userPrompt})
	if len(c.script) == 0 {
		return "", errors.New("script exhausted")
	}
	next := c.script[0]
	c.script = c.script[1:]
	switch v := next.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	}
	return "", errors.New("bad script entry")
}

// funcClient delegates completions to a closure, letting a test observe
// session state while the call is in flight.
type funcClient struct {
	fn func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func (f *funcClient) Name() string { return "func" }

func (f *funcClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.fn(ctx, systemPrompt, userPrompt)
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.GuildID = "1"
	cfg.LLMAPIKey = "k"
	cfg.LLMCallDelay = 0
	cfg.LLMMaxRetries = 2
	return cfg
}

// guildWith returns a snapshot where every character wants every item.
func guildWith(itemIDs ...int64) *fakeGuild {
	raidDate := time.Now().AddDate(0, 0, -7)
	chars := []model.TMBCharacter{
		{Name: "Aderyn", Realm: "Gehennas", Class: "Druid", Spec: "Balance", Archetype: model.ArchetypeDPS, Received: []model.LootEntry{}},
		{Name: "Borin", Realm: "Gehennas", Class: "Warrior", Spec: "Protection", Archetype: model.ArchetypeTank, Received: []model.LootEntry{}},
	}
	for i := range chars {
		for rank, id := range itemIDs {
			chars[i].Wishlist = append(chars[i].Wishlist, model.WishlistEntry{ItemID: id, Rank: rank + 1, Mainspec: true})
		}
	}
	return &fakeGuild{snapshot: model.TMBSnapshot{
		Characters: chars,
		Raids: []model.RaidNight{
			{Date: raidDate, Name: "ICC 25", Attendees: []model.Identity{
				{Name: "Aderyn", Realm: "Gehennas"},
				{Name: "Borin", Realm: "Gehennas"},
			}},
		},
	}}
}

func reply(winner string) string {
	loser := "Borin-Gehennas"
	if winner == loser {
		loser = "Aderyn-Gehennas"
	}
	return "Winner: " + winner + "\n" +
		"Rank 1: " + winner + " | Leads on the top rule.\n" +
		"Rank 2: " + loser + " | Behind on the top rule."
}

func TestOrchestrator_SingleItem(t *testing.T) {
	convey.Convey("Given a single-item run", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{reply("Aderyn-Gehennas")}}
		guild := guildWith(10)
		orch := orchestrator.New(cfg, guild, nil, nil, client)

		decision, err := orch.RunItem(context.Background(), model.Item{ID: 10, Name: "Deathbringer's Will"})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the decision carries winner, ranking and metrics", func() {
			convey.So(decision.Winner.Name, convey.ShouldEqual, "Aderyn")
			convey.So(decision.Ranked, convey.ShouldHaveLength, 2)
			convey.So(decision.Metrics, convey.ShouldHaveLength, 2)
			convey.So(decision.ID, convey.ShouldNotBeEmpty)
			convey.So(decision.WinnerReasoning(), convey.ShouldContainSubstring, "top rule")
		})

		convey.Convey("Then the guild snapshot was fetched once", func() {
			convey.So(guild.fetches, convey.ShouldEqual, 1)
		})
	})
}

func TestOrchestrator_BatchOrdering(t *testing.T) {
	convey.Convey("Given items across tiers in scrambled input order", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{
			reply("Aderyn-Gehennas"), reply("Aderyn-Gehennas"),
			reply("Aderyn-Gehennas"), reply("Aderyn-Gehennas"),
		}}
		guild := guildWith(1, 2, 3, 4)
		orch := orchestrator.New(cfg, guild, nil, nil, client)

		session := orchestrator.NewSession(cfg, []model.Item{
			{ID: 1, Name: "Bryntroll", Tier: "B"},
			{ID: 2, Name: "Shadowmourne", Tier: "S"},
			{ID: 3, Name: "Zod's Repeating Longbow", Tier: "A"},
			{ID: 4, Name: "Deathbringer's Will", Tier: "A"},
		})

		convey.Convey("Then processing order is tier first, name second", func() {
			names := make([]string, len(session.Items))
			for i, it := range session.Items {
				names[i] = it.Name
			}
			convey.So(names, convey.ShouldResemble, []string{
				"Shadowmourne",
				"Deathbringer's Will",
				"Zod's Repeating Longbow",
				"Bryntroll",
			})
		})

		convey.Convey("When the session runs", func() {
			convey.So(orch.Run(context.Background(), session), convey.ShouldBeNil)

			convey.Convey("Then results follow the same order", func() {
				results := session.Results()
				convey.So(results, convey.ShouldHaveLength, 4)
				convey.So(results[0].Item.Name, convey.ShouldEqual, "Shadowmourne")
				convey.So(results[0].State, convey.ShouldEqual, orchestrator.StateCompleted)
			})
		})
	})
}

func TestOrchestrator_SessionCarryover(t *testing.T) {
	convey.Convey("Given a two-item batch won by the same raider", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{
			reply("Aderyn-Gehennas"), reply("Aderyn-Gehennas"),
		}}
		orch := orchestrator.New(cfg, guildWith(1, 2), nil, nil, client)

		session := orchestrator.NewSession(cfg, []model.Item{
			{ID: 1, Name: "Item One", Tier: "S"},
			{ID: 2, Name: "Item Two", Tier: "A"},
		})
		convey.So(orch.Run(context.Background(), session), convey.ShouldBeNil)

		decisions := session.Decisions()
		convey.So(decisions, convey.ShouldHaveLength, 2)

		aderyn := model.Identity{Name: "Aderyn", Realm: "Gehennas"}.Key()

		convey.Convey("Then the first item sees no in-session loot", func() {
			first := decisions[0].Metrics[aderyn]
			v, ok := first.RecentLootCount.Value()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 0)
			convey.So(first.SessionAllocations, convey.ShouldEqual, 0)
		})

		convey.Convey("Then the second item counts the first award", func() {
			second := decisions[1].Metrics[aderyn]
			v, ok := second.RecentLootCount.Value()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 1)
			convey.So(second.SessionAllocations, convey.ShouldEqual, 1)
		})

		convey.Convey("Then the second prompt mentions the session award", func() {
			convey.So(client.calls[1].user, convey.ShouldContainSubstring, "Items assigned this session: 1")
		})

		convey.Convey("When carryover is disabled the award is invisible", func() {
			cfg2 := testConfig()
			cfg2.SessionLootCarryover = false
			client2 := &scriptedClient{script: []any{
				reply("Aderyn-Gehennas"), reply("Aderyn-Gehennas"),
			}}
			orch2 := orchestrator.New(cfg2, guildWith(1, 2), nil, nil, client2)
			session2 := orchestrator.NewSession(cfg2, []model.Item{
				{ID: 1, Name: "Item One", Tier: "S"},
				{ID: 2, Name: "Item Two", Tier: "A"},
			})
			convey.So(orch2.Run(context.Background(), session2), convey.ShouldBeNil)

			second := session2.Decisions()[1].Metrics[aderyn]
			v, _ := second.RecentLootCount.Value()
			convey.So(v, convey.ShouldEqual, 0)
		})
	})
}

func TestOrchestrator_MalformedRetry(t *testing.T) {
	convey.Convey("Given a model that misbehaves on the first reply", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{
			"Winner: Legolas\nRank 1: Legolas | not even in the raid",
			reply("Borin-Gehennas"),
		}}
		orch := orchestrator.New(cfg, guildWith(10), nil, nil, client)

		decision, err := orch.RunItem(context.Background(), model.Item{ID: 10, Name: "Deathbringer's Will"})

		convey.Convey("Then one corrective retry recovers the item", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(decision.Winner.Name, convey.ShouldEqual, "Borin")
			convey.So(client.calls, convey.ShouldHaveLength, 2)
			convey.So(client.calls[1].user, convey.ShouldContainSubstring, "previous reply was invalid")
		})
	})

	convey.Convey("Given a model that misbehaves twice", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{
			"nonsense", "more nonsense", reply("Aderyn-Gehennas"),
		}}
		orch := orchestrator.New(cfg, guildWith(1, 2), nil, nil, client)
		session := orchestrator.NewSession(cfg, []model.Item{
			{ID: 1, Name: "Item One", Tier: "S"},
			{ID: 2, Name: "Item Two", Tier: "A"},
		})
		convey.So(orch.Run(context.Background(), session), convey.ShouldBeNil)

		convey.Convey("Then the item fails without aborting the batch", func() {
			results := session.Results()
			convey.So(results[0].State, convey.ShouldEqual, orchestrator.StateFailed)
			convey.So(results[0].Err, convey.ShouldNotBeNil)
			convey.So(results[1].State, convey.ShouldEqual, orchestrator.StateCompleted)
		})

		convey.Convey("Then only the corrective retry was spent on it", func() {
			convey.So(client.calls, convey.ShouldHaveLength, 3)
		})
	})
}

func TestOrchestrator_ProviderRetry(t *testing.T) {
	convey.Convey("Given transient provider failures", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{
			&llm.ProviderError{Provider: "scripted", Status: 429, Message: "slow down", Retryable: true},
			&llm.ProviderError{Provider: "scripted", Status: 503, Message: "unavailable", Retryable: true},
			reply("Aderyn-Gehennas"),
		}}
		orch := orchestrator.New(cfg, guildWith(10), nil, nil, client)

		decision, err := orch.RunItem(context.Background(), model.Item{ID: 10, Name: "Deathbringer's Will"})

		convey.Convey("Then retries within budget recover the item", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(decision.Winner.Name, convey.ShouldEqual, "Aderyn")
			convey.So(client.calls, convey.ShouldHaveLength, 3)
		})
	})

	convey.Convey("Given a non-retryable provider failure", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{
			&llm.ProviderError{Provider: "scripted", Status: 401, Message: "bad key"},
		}}
		orch := orchestrator.New(cfg, guildWith(10), nil, nil, client)

		_, err := orch.RunItem(context.Background(), model.Item{ID: 10, Name: "Deathbringer's Will"})

		convey.Convey("Then the item fails immediately", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, llm.ErrProvider), convey.ShouldBeTrue)
			convey.So(client.calls, convey.ShouldHaveLength, 1)
		})
	})
}

func TestOrchestrator_Cancellation(t *testing.T) {
	convey.Convey("Given a five-item batch cancelled after the second item", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{
			reply("Aderyn-Gehennas"), reply("Aderyn-Gehennas"),
			reply("Aderyn-Gehennas"), reply("Aderyn-Gehennas"), reply("Aderyn-Gehennas"),
		}}
		items := []model.Item{
			{ID: 1, Name: "Item A", Tier: "S"},
			{ID: 2, Name: "Item B", Tier: "S"},
			{ID: 3, Name: "Item C", Tier: "A"},
			{ID: 4, Name: "Item D", Tier: "A"},
			{ID: 5, Name: "Item E", Tier: "B"},
		}
		session := orchestrator.NewSession(cfg, items)

		done := 0
		orch := orchestrator.New(cfg, guildWith(1, 2, 3, 4, 5), nil, nil, client,
			orchestrator.WithProgress(func(p orchestrator.Progress) {
				done++
				if done == 2 {
					session.Cancel()
				}
			}),
		)
		convey.So(orch.Run(context.Background(), session), convey.ShouldBeNil)

		convey.Convey("Then completed decisions are preserved", func() {
			convey.So(session.Decisions(), convey.ShouldHaveLength, 2)
		})

		convey.Convey("Then the remaining items are skipped, never failed", func() {
			results := session.Results()
			convey.So(results, convey.ShouldHaveLength, 5)
			for _, r := range results[2:] {
				convey.So(r.State, convey.ShouldEqual, orchestrator.StateSkipped)
				convey.So(r.Err, convey.ShouldBeNil)
			}
		})

		convey.Convey("Then the progress counters agree", func() {
			p := session.Progress()
			convey.So(p.Completed, convey.ShouldEqual, 2)
			convey.So(p.Failed, convey.ShouldEqual, 0)
			convey.So(p.Skipped, convey.ShouldEqual, 3)
		})
	})
}

func TestOrchestrator_RunItemCancelledContext(t *testing.T) {
	convey.Convey("Given a context cancelled before the run starts", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{reply("Aderyn-Gehennas")}}
		orch := orchestrator.New(cfg, guildWith(10), nil, nil, client)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		decision, err := orch.RunItem(ctx, model.Item{ID: 10, Name: "Deathbringer's Will"})

		convey.Convey("Then the skip surfaces as an error, never a nil decision", func() {
			convey.So(decision, convey.ShouldBeNil)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "skipped")
		})

		convey.Convey("Then the model was never called", func() {
			convey.So(client.calls, convey.ShouldBeEmpty)
		})
	})
}

func TestOrchestrator_ProgressPhases(t *testing.T) {
	convey.Convey("Given a run observed while the model call is in flight", t, func() {
		cfg := testConfig()
		session := orchestrator.NewSession(cfg, []model.Item{{ID: 10, Name: "Deathbringer's Will"}})

		var during orchestrator.Progress
		client := &funcClient{fn: func(_ context.Context, _, _ string) (string, error) {
			during = session.Progress()
			return reply("Aderyn-Gehennas"), nil
		}}
		orch := orchestrator.New(cfg, guildWith(10), nil, nil, client)
		convey.So(orch.Run(context.Background(), session), convey.ShouldBeNil)

		convey.Convey("Then the in-flight item reports the evaluating step", func() {
			convey.So(during.CurrentItem, convey.ShouldEqual, "Deathbringer's Will")
			convey.So(during.CurrentState, convey.ShouldEqual, orchestrator.StateEvaluating)
		})

		convey.Convey("Then the finished item reports its terminal state", func() {
			p := session.Progress()
			convey.So(p.CurrentState, convey.ShouldEqual, orchestrator.StateCompleted)
			convey.So(p.Completed, convey.ShouldEqual, 1)
		})
	})
}

func TestOrchestrator_NoCandidates(t *testing.T) {
	convey.Convey("Given an item nobody wishlisted", t, func() {
		cfg := testConfig()
		client := &scriptedClient{script: []any{reply("Aderyn-Gehennas")}}
		orch := orchestrator.New(cfg, guildWith(1), nil, nil, client)

		session := orchestrator.NewSession(cfg, []model.Item{
			{ID: 99, Name: "Unwanted Bracers", Tier: "S"},
			{ID: 1, Name: "Item One", Tier: "A"},
		})
		convey.So(orch.Run(context.Background(), session), convey.ShouldBeNil)

		convey.Convey("Then it fails with no-candidates and the batch continues", func() {
			results := session.Results()
			convey.So(results[0].State, convey.ShouldEqual, orchestrator.StateFailed)
			convey.So(errors.Is(results[0].Err, orchestrator.ErrNoCandidates), convey.ShouldBeTrue)
			convey.So(results[1].State, convey.ShouldEqual, orchestrator.StateCompleted)
		})

		convey.Convey("Then the model was never called for the empty pool", func() {
			convey.So(client.calls, convey.ShouldHaveLength, 1)
		})
	})
}

func TestOrchestrator_InvalidPolicyAbortsRun(t *testing.T) {
	convey.Convey("Given an oversized custom policy", t, func() {
		cfg := testConfig()
		cfg.PolicyMode = config.PolicyModeCustom
		cfg.CustomPolicyText = strings.Repeat("x", cfg.CustomPolicyMaxChars+1)
		client := &scriptedClient{script: []any{reply("Aderyn-Gehennas")}}
		orch := orchestrator.New(cfg, guildWith(1), nil, nil, client)

		session := orchestrator.NewSession(cfg, []model.Item{{ID: 1, Name: "Item One"}})
		err := orch.Run(context.Background(), session)

		convey.Convey("Then the run aborts before any item is processed", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(session.Results(), convey.ShouldBeEmpty)
			convey.So(client.calls, convey.ShouldBeEmpty)
		})
	})
}
