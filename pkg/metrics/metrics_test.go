package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/raidtools/lootcouncil/pkg/metrics"
)

func TestManager(t *testing.T) {
	convey.Convey("Given a manager on its own registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(metrics.WithRegistry(reg), metrics.WithNamespace("test"))

		convey.Convey("Then its collectors are registered under the namespace", func() {
			families, err := reg.Gather()
			convey.So(err, convey.ShouldBeNil)

			var names []string
			for _, f := range families {
				names = append(names, f.GetName())
			}
			convey.So(names, convey.ShouldContain, "test_eval_items_completed_total")
			convey.So(names, convey.ShouldContain, "test_llm_request_seconds")
		})

		convey.Convey("Then the handler serves the exposition format", func() {
			srv := httptest.NewServer(m.Handler())
			defer srv.Close()

			resp, err := http.Get(srv.URL)
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			convey.So(string(body), convey.ShouldContainSubstring, "test_eval_sessions_total")
		})
	})
}

func TestRecordHelpers(t *testing.T) {
	convey.Convey("Given the package-level record helpers", t, func() {
		convey.Convey("Then recording against the default manager does not panic", func() {
			convey.So(func() {
				metrics.RecordSessionStarted()
				metrics.RecordItemCompleted()
				metrics.RecordItemFailed("budget")
				metrics.RecordItemSkipped()
				metrics.RecordCandidates(4)
				metrics.RecordPromptChars(1800)
				metrics.RecordLLMRequestSeconds(1.5)
				metrics.RecordLLMRetry()
				metrics.RecordDataQualityWarning()
			}, convey.ShouldNotPanic)
		})
	})
}
