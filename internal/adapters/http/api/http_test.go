package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/http/api"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/mq/queue"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/repository"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

type mockDeps struct {
	mu         sync.Mutex
	seen       map[string]bool
	jobs       []queue.Job
	enqueueErr error
	alarmErr   error
	started    bool
	reports    map[string]health.Report
	evaluator  *health.Evaluator
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		seen:      make(map[string]bool),
		started:   true,
		reports:   make(map[string]health.Report),
		evaluator: health.NewEvaluator(nil),
	}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
}

func (m *mockDeps) Enqueue(_ context.Context, j queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, j)
	return nil
}

func (m *mockDeps) IngestAlarm(_ context.Context, body []byte) (model.Record, error) {
	if m.alarmErr != nil {
		return model.Record{}, m.alarmErr
	}
	a, err := model.ParseAlarm(body)
	if err != nil {
		return model.Record{}, err
	}
	return model.Record{Kind: model.KindAlarm, Alarm: &model.AlarmRecord{ID: "alarm-1", AlarmNotification: a}}, nil
}

func (m *mockDeps) Evaluate(req health.HealthRequest, observed, threshold int64) (health.Classification, error) {
	return m.evaluator.Evaluate(req, observed, threshold)
}

func (m *mockDeps) EvaluateHealth(_ context.Context, repo, theme string, day time.Time) (health.Report, error) {
	if _, err := m.evaluator.Catalog().Requests(theme, repo); err != nil {
		return health.Report{}, err
	}
	r := health.Report{Repository: repo, Date: day.Format(model.DateLayout), ActionItems: []string{health.NoActionItems}}
	m.reports[repo+theme+r.Date] = r
	return r, nil
}

func (m *mockDeps) StoredReport(_ context.Context, repo, theme string, day time.Time) (health.Report, error) {
	r, ok := m.reports[repo+theme+day.Format(model.DateLayout)]
	if !ok {
		return health.Report{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *mockDeps) Started() bool                { return m.started }
func (m *mockDeps) QueueLen(context.Context) int { return len(m.jobs) }

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	base := []api.Option{
		api.WithLogger(logger.Nop()),
		api.WithClock(func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }),
	}
	mux := http.NewServeMux()
	api.NewServer(deps, append(base, opts...)...).Register(context.Background(), mux)
	return mux
}

func delivery(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(`{"action":"opened"}`))
	req.Header.Set(api.HeaderEvent, "issues")
	req.Header.Set(api.HeaderDelivery, id)
	return req
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestWebhookRoute(t *testing.T) {
	Convey("Given the API with working dependencies", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("A delivery is queued with its headers", func() {
			w := serve(mux, delivery("d-1"))
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.jobs, ShouldHaveLength, 1)
			So(deps.jobs[0].Event, ShouldEqual, "issues")
			So(deps.jobs[0].DeliveryID, ShouldEqual, "d-1")
			So(string(deps.jobs[0].Body), ShouldEqual, `{"action":"opened"}`)
			So(deps.jobs[0].Received.IsZero(), ShouldBeFalse)

			Convey("and a redelivery is acknowledged as a duplicate", func() {
				w := serve(mux, delivery("d-1"))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["duplicate"], ShouldEqual, true)
				So(deps.jobs, ShouldHaveLength, 1)
			})
		})

		Convey("Missing headers are rejected", func() {
			req := delivery("d-2")
			req.Header.Del(api.HeaderDelivery)
			w := serve(mux, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("A ping is answered without queueing", func() {
			req := delivery("d-ping")
			req.Header.Set(api.HeaderEvent, "ping")
			w := serve(mux, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.jobs, ShouldBeEmpty)
		})

		Convey("A full queue returns backpressure and forgets the delivery", func() {
			deps.enqueueErr = fmt.Errorf("enqueue: %w", queue.ErrFull)
			w := serve(mux, delivery("d-3"))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "backpressure")
			So(deps.seen["d-3"], ShouldBeFalse)
		})

		Convey("Other methods are not allowed", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/webhooks/github", nil))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a limit of one request with no burst headroom", t, func() {
		deps := newMockDeps()
		mux := newMux(deps, api.WithRateLimit(0.001, 1))

		Convey("The second request from one client is limited", func() {
			So(serve(mux, delivery("r-1")).Code, ShouldEqual, http.StatusAccepted)
			w := serve(mux, delivery("r-2"))
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Header().Get("Retry-After"), ShouldEqual, "1")

			Convey("while another client is not", func() {
				req := delivery("r-3")
				req.Header.Set("X-Forwarded-For", "10.0.0.9, 10.0.0.1")
				So(serve(mux, req).Code, ShouldEqual, http.StatusAccepted)
			})
		})
	})

	Convey("A non-positive rate disables limiting", t, func() {
		So(api.NewLimiter(0, 10), ShouldBeNil)
	})
}

func TestAlarmRoute(t *testing.T) {
	const alarm = `{"AlarmName":"HighCPU","AlarmArn":"arn:aws:cloudwatch:us-east-1:1:alarm:HighCPU","StateChangeTime":"2024-01-15T10:00:00.000+0000"}`

	Convey("Given the API", t, func() {
		mux := newMux(newMockDeps())

		Convey("A valid alarm is accepted with its id", func() {
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/alarms", strings.NewReader(alarm)))
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(decode(w)["id"], ShouldEqual, "alarm-1")
		})

		Convey("An invalid alarm is a bad request", func() {
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/alarms", strings.NewReader(`{"AlarmName":"x"}`)))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthRoutes(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("healthz reports ok once started", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("healthz reports 503 before start", func() {
			deps.started = false
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("metrics are exposed in the Prometheus format", func() {
			serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("An explicit evaluation is classified", func() {
			body := `{"request":{"theme":"github_health","factor":"UNTRIAGED_ISSUES","factorThreshold":"UNTRIAGED_ISSUES","repository":"example/repo"},"observed":5,"threshold":5}`
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/health/evaluate", strings.NewReader(body)))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["classification"], ShouldEqual, string(health.Healthy))
		})

		Convey("A request naming its threshold factor is not treated as inapplicable", func() {
			body := `{"request":{"theme":"github_health","factor":"UNTRIAGED_ISSUES","factorThreshold":"UNTRIAGED_ISSUES","index":"github-untriaged","repository":"example/repo"},"observed":100,"threshold":1}`
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/health/evaluate", strings.NewReader(body)))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["classification"], ShouldEqual, string(health.Critical))
		})

		Convey("A cross-domain evaluation is rejected", func() {
			body := `{"request":{"factor":"UNTRIAGED_ISSUES","factor_threshold":"PRS_NOT_RESPONDED_THIRTY_DAYS"},"observed":1,"threshold":1}`
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/health/evaluate", strings.NewReader(body)))
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decode(w)["code"], ShouldEqual, "threshold_mismatch")
		})

		Convey("A report is evaluated then read back", func() {
			body := `{"repository":"example/repo","theme":"github_health","date":"2024-01-15"}`
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/health/report", strings.NewReader(body)))
			So(w.Code, ShouldEqual, http.StatusOK)

			w = serve(mux, httptest.NewRequest(http.MethodGet,
				"/health/report?repository=example/repo&theme=github_health&date=2024-01-15", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["repository"], ShouldEqual, "example/repo")
		})

		Convey("A report that was never evaluated is not found", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/health/report?repository=other/repo", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A malformed date is a bad request", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/health/report?repository=example/repo&date=jan", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unknown theme is a bad request", func() {
			body := `{"repository":"example/repo","theme":"nope"}`
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/health/report", strings.NewReader(body)))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
