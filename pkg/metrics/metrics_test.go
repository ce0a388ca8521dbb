package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a manager on a fresh registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("Then it initializes without panicking", func() {
			So(m, ShouldNotBeNil)
		})

		Convey("Then every metric family is registered", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)

			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			for _, want := range []string{
				"powerscan_kiosk_frames_scored_total",
				"powerscan_kiosk_scoring_latency_milliseconds",
				"powerscan_kiosk_results_saved_total",
				"powerscan_kiosk_ranking_records",
				"powerscan_kiosk_asset_writes_total",
				"powerscan_kiosk_active_sessions",
				"powerscan_kiosk_ws_connections",
				"powerscan_kiosk_queue_size",
				"powerscan_kiosk_worker_active_count",
				"powerscan_kiosk_system_goroutine_count",
			} {
				So(names[want], ShouldBeTrue)
			}
		})
	})

	Convey("Given custom namespace and subsystem", t, func() {
		registry := prometheus.NewRegistry()
		NewManager(
			WithPrometheusRegistry(registry),
			WithNamespace("custom"),
			WithSubsystem("svc"),
			WithHistogramBuckets([]float64{1, 5, 10}),
		)

		Convey("Then metric names carry them", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			found := false
			for _, f := range families {
				if f.GetName() == "custom_svc_frames_scored_total" {
					found = true
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestPackageLevelRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Then the recorder functions never panic", func() {
			So(func() {
				RecordFrameScored()
				RecordFrameNoDetection()
				RecordScoringLatency(1.2)
				RecordResultSaved()
				RecordResultDeleted()
				RecordSaveError()
				UpdateRecordCount(3)
				RecordAssetWrite()
				RecordAssetCollision()
				RecordAssetError()
				RecordSessionTransition("idle", "gender_select")
				UpdateActiveSessions(1)
				RecordSessionsPruned(2)
				UpdateWSConnections(1)
				RecordWSMessage()
				RecordWSParseError()
				UpdateQueueSize(5)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.05)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.4)
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(3.3)
				RecordWorkerError()
				RecordHTTPRequest("/api/get_ranking", "GET", "200")
				RecordHTTPRequestDuration("/api/get_ranking", "GET", "200", 12.5)
				RecordErrorByComponent("ws", "parse_failed")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(42)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("Then the shared registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}
