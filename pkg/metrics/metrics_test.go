package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording match metrics", func() {
			Convey("Then it should record applied matches", func() {
				So(func() {
					RecordMatchApplied()
					RecordMatchApplied()
				}, ShouldNotPanic)
			})

			Convey("And it should record duplicate matches", func() {
				So(func() {
					RecordMatchDuplicate()
					RecordMatchDuplicate()
				}, ShouldNotPanic)
			})

			Convey("And it should record validation failures per field", func() {
				So(func() {
					RecordValidationFailure("matchId")
					RecordValidationFailure("winner")
				}, ShouldNotPanic)
			})

			Convey("And it should record contention", func() {
				So(func() {
					RecordLockTimeout()
					RecordCommitConflict()
				}, ShouldNotPanic)
			})

			Convey("And it should record apply latency", func() {
				So(func() {
					RecordApplyLatency(1.5)
					RecordApplyLatency(20.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording store metrics", func() {
			So(func() {
				RecordStoreQueryLatency(0.5)
				RecordStoreCommitLatency(2.0)
				UpdateTotalPlayers(500)
			}, ShouldNotPanic)
		})

		Convey("When recording queue metrics", func() {
			So(func() {
				UpdateEventQueueSize(1000)
				UpdateEventQueueCapacity(65536)
				RecordEventQueueDrop("full")
				RecordDeliveryLatency(3.0)
			}, ShouldNotPanic)
		})

		Convey("When recording broadcast metrics", func() {
			So(func() {
				RecordEventPublished()
				RecordEventDelivered()
				RecordEventDropped()
				RecordSlowConsumerDisconnect()
				UpdateSubscriberCount(12)
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP metrics", func() {
			So(func() {
				RecordHTTPRequest("/results", "POST", "200")
				RecordHTTPRequestDuration("/leaderboard", "GET", "200", 15.0)
				RecordErrorByEndpoint("/results", "POST", "contention")
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1024 * 1024 * 100)
				UpdateSystemGoroutineCount(200)
				RecordSystemGCPauseTime(1.5)
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsEdgeCases(t *testing.T) {
	Convey("Given metrics edge cases", t, func() {
		Convey("When recording metrics with edge values", func() {
			Convey("And using zero values", func() {
				So(func() {
					UpdateEventQueueSize(0)
					UpdateTotalPlayers(0)
					UpdateSubscriberCount(0)
					RecordApplyLatency(0.0)
					RecordHTTPRequestDuration("/test", "GET", "200", 0.0)
				}, ShouldNotPanic)
			})

			Convey("And using negative values", func() {
				So(func() {
					UpdateEventQueueSize(-100)
					UpdateTotalPlayers(-10)
				}, ShouldNotPanic)
			})

			Convey("And using very large values", func() {
				So(func() {
					UpdateEventQueueSize(1000000)
					UpdateTotalPlayers(10000000)
					RecordApplyLatency(10000.0)
				}, ShouldNotPanic)
			})

			Convey("And using empty strings", func() {
				So(func() {
					RecordHTTPRequest("", "", "200")
					RecordValidationFailure("")
					RecordEventQueueDrop("")
					RecordErrorByEndpoint("", "", "")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given metrics concurrency", t, func() {
		Convey("When recording metrics concurrently", func() {
			done := make(chan bool, 10)

			for i := 0; i < 10; i++ {
				go func() {
					for j := 0; j < 100; j++ {
						RecordMatchApplied()
						UpdateEventQueueSize(1000 + j)
						RecordApplyLatency(float64(j))
						RecordHTTPRequest("/results", "POST", "200")
					}
					done <- true
				}()
			}

			for i := 0; i < 10; i++ {
				<-done
			}

			Convey("Then it should handle concurrent access without panics", func() {
				So(true, ShouldBeTrue) // If we get here, no panics occurred
			})
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		Convey("Then it is available for scrape handlers", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
