package source_test

import (
	"context"
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/raidtools/lootcouncil/internal/domain/model"
	"github.com/raidtools/lootcouncil/internal/source"
)

// countingParseSource records which identities each fetch asked for.
type countingParseSource struct {
	scores  map[string]model.ParseScore
	fetches [][]model.Identity
	err     error
}

func (c *countingParseSource) FetchParses(_ context.Context, ids []model.Identity, zone string) (model.ParseSnapshot, error) {
	c.fetches = append(c.fetches, ids)
	if c.err != nil {
		return model.ParseSnapshot{}, c.err
	}
	out := model.ParseSnapshot{Zone: zone, Metric: "dps", Scores: map[string]model.ParseScore{}}
	for _, id := range ids {
		if sc, ok := c.scores[id.Key()]; ok {
			out.Scores[id.Key()] = sc
		}
	}
	return out, nil
}

func id(name string) model.Identity { return model.Identity{Name: name, Realm: "Gehennas"} }

func TestCachedParseSource(t *testing.T) {
	convey.Convey("Given a cached parse source", t, func() {
		best := 88.0
		inner := &countingParseSource{scores: map[string]model.ParseScore{
			id("Aderyn").Key(): {Best: &best},
		}}
		cached := source.NewCachedParseSource(inner)
		ctx := context.Background()

		convey.Convey("When the same characters are fetched twice", func() {
			first, err := cached.FetchParses(ctx, []model.Identity{id("Aderyn"), id("Borin")}, "icc")
			convey.So(err, convey.ShouldBeNil)

			second, err := cached.FetchParses(ctx, []model.Identity{id("Aderyn"), id("Borin")}, "icc")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the second fetch is served from cache", func() {
				convey.So(inner.fetches, convey.ShouldHaveLength, 1)
				convey.So(second.Scores, convey.ShouldResemble, first.Scores)
				convey.So(second.Metric, convey.ShouldEqual, "dps")
			})

			convey.Convey("Then absence is cached too", func() {
				convey.So(cached.Cached("icc", id("Borin")), convey.ShouldBeTrue)
				_, hasBorin := second.Scores[id("Borin").Key()]
				convey.So(hasBorin, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a later fetch adds new characters", func() {
			_, err := cached.FetchParses(ctx, []model.Identity{id("Aderyn")}, "icc")
			convey.So(err, convey.ShouldBeNil)
			_, err = cached.FetchParses(ctx, []model.Identity{id("Aderyn"), id("Ciri")}, "icc")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then only the missing characters hit the provider", func() {
				convey.So(inner.fetches, convey.ShouldHaveLength, 2)
				convey.So(inner.fetches[1], convey.ShouldHaveLength, 1)
				convey.So(inner.fetches[1][0].Name, convey.ShouldEqual, "Ciri")
			})
		})

		convey.Convey("When Warm prefetches a pool", func() {
			convey.So(cached.Warm(ctx, []model.Identity{id("Aderyn")}, "icc"), convey.ShouldBeNil)

			convey.Convey("Then the cache is populated", func() {
				convey.So(cached.Cached("icc", id("Aderyn")), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When zones differ the cache entries are distinct", func() {
			_, err := cached.FetchParses(ctx, []model.Identity{id("Aderyn")}, "icc")
			convey.So(err, convey.ShouldBeNil)

			convey.So(cached.Cached("naxx", id("Aderyn")), convey.ShouldBeFalse)
		})

		convey.Convey("When the provider fails", func() {
			inner.err = &source.FetchError{Provider: "wcl", Err: errors.New("rate limited")}
			_, err := cached.FetchParses(ctx, []model.Identity{id("Dain")}, "icc")

			convey.Convey("Then the error is retryable and nothing is cached", func() {
				convey.So(errors.Is(err, source.ErrFetch), convey.ShouldBeTrue)
				convey.So(cached.Cached("icc", id("Dain")), convey.ShouldBeFalse)
			})
		})
	})
}
