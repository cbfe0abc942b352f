package model_test

import (
	"encoding/json"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

func TestIdentity(t *testing.T) {
	convey.Convey("Given character identities", t, func() {
		a := model.Identity{Name: "Aderyn", Realm: "Gehennas"}
		b := model.Identity{Name: "ADERYN", Realm: "gehennas"}

		convey.Convey("Then the join key is case-insensitive", func() {
			convey.So(a.Key(), convey.ShouldEqual, "aderyn@gehennas")
			convey.So(a.Equal(b), convey.ShouldBeTrue)
		})

		convey.Convey("Then the display form keeps the original casing", func() {
			convey.So(a.String(), convey.ShouldEqual, "Aderyn-Gehennas")
			convey.So(model.Identity{Name: "Aderyn"}.String(), convey.ShouldEqual, "Aderyn")
		})
	})
}

func TestTierRank(t *testing.T) {
	convey.Convey("Given item tiers", t, func() {
		convey.Convey("Then S outranks A outranks B", func() {
			convey.So(model.TierRank("S"), convey.ShouldBeLessThan, model.TierRank("A"))
			convey.So(model.TierRank("A"), convey.ShouldBeLessThan, model.TierRank("B"))
		})

		convey.Convey("Then casing and whitespace are tolerated", func() {
			convey.So(model.TierRank(" s "), convey.ShouldEqual, model.TierRank("S"))
		})

		convey.Convey("Then unknown tiers sort last", func() {
			convey.So(model.TierRank(""), convey.ShouldBeGreaterThan, model.TierRank("D"))
			convey.So(model.TierRank("legendary"), convey.ShouldBeGreaterThan, model.TierRank("D"))
		})
	})
}

func TestMetricValue(t *testing.T) {
	convey.Convey("Given the three metric states", t, func() {
		available := model.AvailableMetric(66.7)
		unavailable := model.UnavailableMetric()
		disabled := model.DisabledMetric()

		convey.Convey("Then value access matches the state", func() {
			v, ok := available.Value()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 66.7)

			_, ok = unavailable.Value()
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(disabled.Disabled(), convey.ShouldBeTrue)
		})

		convey.Convey("Then formatting never renders an unavailable value as zero", func() {
			convey.So(available.Format(1), convey.ShouldEqual, "66.7")
			convey.So(unavailable.Format(1), convey.ShouldEqual, "unknown")
		})

		convey.Convey("Then JSON keeps the tri-state explicit", func() {
			for value, want := range map[model.MetricValue]string{
				available:   `{"state":"available","value":66.7}`,
				unavailable: `{"state":"unavailable"}`,
				disabled:    `{"state":"disabled"}`,
			} {
				data, err := json.Marshal(value)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual, want)
			}
		})
	})
}

func TestDecision_WinnerReasoning(t *testing.T) {
	convey.Convey("Given a decision with a ranked list", t, func() {
		winner := model.Identity{Name: "Aderyn", Realm: "Gehennas"}
		d := model.Decision{
			Winner: winner,
			Ranked: []model.RankedCandidate{
				{Rank: 1, Identity: winner, Reasoning: "first on attendance"},
				{Rank: 2, Identity: model.Identity{Name: "Borin", Realm: "Gehennas"}, Reasoning: "second"},
			},
		}

		convey.Convey("Then the winner's reasoning is looked up by identity", func() {
			convey.So(d.WinnerReasoning(), convey.ShouldEqual, "first on attendance")
		})
	})
}
