package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it should register collectors under the salle namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.fencersRegistered.Add(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "salle_club_fencers_registered_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("p"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithConstLabels(map[string]string{"club": "north"}),
				WithRegistry(registry),
			)

			Convey("Then names should carry the namespace, subsystem and prefix", func() {
				manager.boutsDeleted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_unit_p_bouts_deleted_total")
			})

			Convey("And every series should carry the const labels", func() {
				manager.boutsDeleted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				for _, f := range families {
					if f.GetName() != "test_unit_p_bouts_deleted_total" {
						continue
					}
					labels := f.GetMetric()[0].GetLabel()
					So(labels, ShouldHaveLength, 1)
					So(labels[0].GetName(), ShouldEqual, "club")
					So(labels[0].GetValue(), ShouldEqual, "north")
				}
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording bout activity", func() {
			before := value(globalManager.boutsRecorded.WithLabelValues("simulated"))
			RecordBoutRecorded("simulated")
			RecordBoutRecorded("simulated")

			Convey("Then the labelled counter should advance", func() {
				So(value(globalManager.boutsRecorded.WithLabelValues("simulated")), ShouldEqual, before+2)
			})
		})

		Convey("When setting state gauges", func() {
			UpdateStatePhase(2)
			UpdateStateSizes(10, 25, 3)

			Convey("Then the gauges should hold the values", func() {
				So(value(globalManager.statePhase), ShouldEqual, 2)
				So(value(globalManager.stateFencers), ShouldEqual, 10)
				So(value(globalManager.stateBouts), ShouldEqual, 25)
				So(value(globalManager.stateSessions), ShouldEqual, 3)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				RecordBoutRejected("same_fencer")
				RecordBoutUpdated()
				RecordBoutDeleted()
				RecordFencersRegistered(10)
				RecordIdempotentReplay()
				RecordAggregationLatency("matrix", 0.4)
				RecordStateRefresh("ok", 12)
				RecordStateRollback()
				RecordRecordStoreCall("bouts.insert", 3, false)
				RecordRecordStoreCall("bouts.insert", 30, true)
				RecordHTTPRequest("/api/bouts", "POST", "201")
				RecordHTTPRequestDuration("/api/bouts", "POST", "201", 4)
				UpdateQueueSize(1)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.01)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.1)
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(1)
				RecordWorkerError()
				UpdateLiveClients(3)
				RecordLiveBroadcast("leaderboard")
				RecordAuthAttempt("password", "ok")
				RecordExport("ok")
				RecordErrorByComponent("state", "remote")
				RecordErrorByType("remote", "high")
				RecordErrorByEndpoint("/api/bouts", "POST", "client_error")
				RecordErrorLatency("http", "client_error", 2)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When asking for the registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}

func TestSince(t *testing.T) {
	Convey("Given a start time in the past", t, func() {
		start := time.Now().Add(-20 * time.Millisecond)

		Convey("Then Since should report at least that many milliseconds", func() {
			So(Since(start), ShouldBeGreaterThanOrEqualTo, 20)
		})
	})
}

func value(m prometheus.Metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return -1
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	return -1
}
