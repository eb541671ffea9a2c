// Package loadtest drives realistic campus traffic against a running server:
// students browsing and registering, admins pulling reports. It is used to
// check the registration path under contention and to exercise dashboards.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/campusevents/server/internal/testauth"
	"golang.org/x/time/rate"
)

type LoadProfile string

const (
	ProfileLight  LoadProfile = "light"
	ProfileMedium LoadProfile = "medium"
	ProfileHeavy  LoadProfile = "heavy"
	// ProfileRush models registration opening for a popular event: short,
	// write-heavy and without ramp-up.
	ProfileRush LoadProfile = "rush"
)

type ProfileConfig struct {
	RequestsPerSecond int
	Duration          time.Duration
	RampUpTime        time.Duration
	RampDownTime      time.Duration
	// ReadWriteRatio is the share of reads, 0.8 meaning 80% reads.
	ReadWriteRatio float64
}

var LoadProfiles = map[LoadProfile]ProfileConfig{
	ProfileLight: {
		RequestsPerSecond: 5,
		Duration:          time.Minute,
		RampUpTime:        10 * time.Second,
		RampDownTime:      10 * time.Second,
		ReadWriteRatio:    0.8,
	},
	ProfileMedium: {
		RequestsPerSecond: 20,
		Duration:          2 * time.Minute,
		RampUpTime:        20 * time.Second,
		RampDownTime:      20 * time.Second,
		ReadWriteRatio:    0.8,
	},
	ProfileHeavy: {
		RequestsPerSecond: 50,
		Duration:          5 * time.Minute,
		RampUpTime:        30 * time.Second,
		RampDownTime:      30 * time.Second,
		ReadWriteRatio:    0.7,
	},
	ProfileRush: {
		RequestsPerSecond: 80,
		Duration:          45 * time.Second,
		ReadWriteRatio:    0.3,
	},
}

// Target names the accounts and events the generated traffic uses. The
// accounts must exist on the server; `server seed` creates suitable ones.
type Target struct {
	BaseURL  string
	Students []*testauth.Authenticator
	Admin    *testauth.Authenticator
	EventIDs []int64
}

type LoadTester struct {
	target     Target
	httpClient *http.Client
	out        io.Writer
	stats      *Statistics
}

func NewLoadTester(target Target, out io.Writer) *LoadTester {
	target.BaseURL = strings.TrimRight(target.BaseURL, "/")
	return &LoadTester{
		target:     target,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		out:        out,
		stats:      newStatistics(),
	}
}

type Statistics struct {
	mu sync.Mutex

	totalRequests   int64
	successRequests int64
	failedRequests  int64

	// milliseconds
	responseTimes []int64
	errors        map[int]int64
	endpointStats map[string]*EndpointStats

	startTime time.Time
	endTime   time.Time
}

type EndpointStats struct {
	count   int64
	total   int64
	times   []int64
	errors  int64
	minTime int64
	maxTime int64
}

func newStatistics() *Statistics {
	return &Statistics{
		errors:        make(map[int]int64),
		endpointStats: make(map[string]*EndpointStats),
		startTime:     time.Now(),
	}
}

func (lt *LoadTester) Run(ctx context.Context, profile LoadProfile) (*Statistics, error) {
	cfg, ok := LoadProfiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", profile)
	}
	return lt.RunCustom(ctx, cfg)
}

func (lt *LoadTester) RunCustom(ctx context.Context, cfg ProfileConfig) (*Statistics, error) {
	if len(lt.target.Students) == 0 || len(lt.target.EventIDs) == 0 {
		return nil, fmt.Errorf("load test needs at least one student and one event")
	}
	if cfg.RequestsPerSecond < 1 {
		return nil, fmt.Errorf("requests per second must be positive")
	}
	lt.stats = newStatistics()

	fmt.Fprintf(lt.out, "Starting load test...\n")
	fmt.Fprintf(lt.out, "  Target: %s\n", lt.target.BaseURL)
	fmt.Fprintf(lt.out, "  RPS: %d  Duration: %s  Ramp: %s/%s\n", cfg.RequestsPerSecond, cfg.Duration, cfg.RampUpTime, cfg.RampDownTime)
	fmt.Fprintf(lt.out, "  Students: %d  Events: %d  Reads: %.0f%%\n\n", len(lt.target.Students), len(lt.target.EventIDs), cfg.ReadWriteRatio*100)

	workers := max(cfg.RequestsPerSecond*2, 10)
	work := make(chan workItem, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				lt.executeRequest(ctx, item)
			}
		}()
	}

	lt.generateWork(ctx, cfg, work)
	close(work)
	wg.Wait()
	lt.stats.endTime = time.Now()
	return lt.stats, nil
}

type workItem struct {
	method   string
	path     string
	endpoint string
	auth     *testauth.Authenticator
}

// generateWork paces work items with a limiter whose rate follows the
// ramp-up, steady and ramp-down phases.
func (lt *LoadTester) generateWork(ctx context.Context, cfg ProfileConfig, work chan<- workItem) {
	start := time.Now()
	total := cfg.RampUpTime + cfg.Duration + cfg.RampDownTime
	current := calculateCurrentRPS(0, cfg)
	limiter := rate.NewLimiter(rate.Limit(current), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed > total {
			return
		}
		if rps := calculateCurrentRPS(elapsed, cfg); rps != current {
			limiter.SetLimit(rate.Limit(rps))
			current = rps
		}

		var item workItem
		if rand.Float64() < cfg.ReadWriteRatio {
			item = lt.readRequest()
		} else {
			item = lt.writeRequest()
		}
		select {
		case work <- item:
		case <-ctx.Done():
			return
		}
	}
}

func calculateCurrentRPS(elapsed time.Duration, cfg ProfileConfig) int {
	target := cfg.RequestsPerSecond

	if elapsed < cfg.RampUpTime {
		return max(int(float64(target)*float64(elapsed)/float64(cfg.RampUpTime)), 1)
	}
	steadyEnd := cfg.RampUpTime + cfg.Duration
	if elapsed < steadyEnd {
		return target
	}
	if down := elapsed - steadyEnd; down < cfg.RampDownTime {
		return max(int(float64(target)*(1-float64(down)/float64(cfg.RampDownTime))), 1)
	}
	return 1
}

func (lt *LoadTester) randomStudent() *testauth.Authenticator {
	return lt.target.Students[rand.IntN(len(lt.target.Students))]
}

func (lt *LoadTester) randomEvent() int64 {
	return lt.target.EventIDs[rand.IntN(len(lt.target.EventIDs))]
}

func (lt *LoadTester) readRequest() workItem {
	student := lt.randomStudent()
	ops := []workItem{
		{method: http.MethodGet, path: "/health", endpoint: "health"},
		{method: http.MethodGet, path: "/api/student/events?status=upcoming", endpoint: "browse_events", auth: student},
		{method: http.MethodGet, path: fmt.Sprintf("/api/student/events/%d", lt.randomEvent()), endpoint: "event_detail", auth: student},
		{method: http.MethodGet, path: "/api/student/registrations", endpoint: "my_registrations", auth: student},
	}
	if lt.target.Admin != nil {
		ops = append(ops,
			workItem{method: http.MethodGet, path: "/api/reports/overview", endpoint: "report_overview", auth: lt.target.Admin},
			workItem{method: http.MethodGet, path: "/api/reports/event-popularity", endpoint: "report_popularity", auth: lt.target.Admin},
		)
	}
	return ops[rand.IntN(len(ops))]
}

// writeRequest registers or cancels. Conflicts (already registered, full)
// are expected under load and show up as 4xx in the report.
func (lt *LoadTester) writeRequest() workItem {
	path := fmt.Sprintf("/api/student/events/%d/register", lt.randomEvent())
	if rand.Float64() < 0.75 {
		return workItem{method: http.MethodPost, path: path, endpoint: "register", auth: lt.randomStudent()}
	}
	return workItem{method: http.MethodDelete, path: path, endpoint: "cancel_registration", auth: lt.randomStudent()}
}

func (lt *LoadTester) executeRequest(ctx context.Context, work workItem) {
	lt.stats.mu.Lock()
	lt.stats.totalRequests++
	lt.stats.mu.Unlock()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, work.method, lt.target.BaseURL+work.path, nil)
	if err != nil {
		lt.recordError(0, work.endpoint)
		return
	}
	work.auth.AddAuth(req)

	resp, err := lt.httpClient.Do(req)
	if err != nil {
		lt.recordError(0, work.endpoint)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	lt.recordResponse(resp.StatusCode, time.Since(start).Milliseconds(), work.endpoint)
}

func (lt *LoadTester) recordResponse(statusCode int, durationMs int64, endpoint string) {
	s := lt.stats
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responseTimes = append(s.responseTimes, durationMs)
	ok := statusCode >= 200 && statusCode < 300
	if ok {
		s.successRequests++
	} else {
		s.failedRequests++
		s.errors[statusCode]++
	}

	ep := s.endpointStats[endpoint]
	if ep == nil {
		ep = &EndpointStats{minTime: durationMs, maxTime: durationMs}
		s.endpointStats[endpoint] = ep
	}
	ep.count++
	ep.total += durationMs
	ep.times = append(ep.times, durationMs)
	ep.minTime = min(ep.minTime, durationMs)
	ep.maxTime = max(ep.maxTime, durationMs)
	if !ok {
		ep.errors++
	}
}

// recordError counts a request that never got a response.
func (lt *LoadTester) recordError(statusCode int, endpoint string) {
	s := lt.stats
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failedRequests++
	s.errors[statusCode]++
	if s.endpointStats[endpoint] == nil {
		s.endpointStats[endpoint] = &EndpointStats{}
	}
	s.endpointStats[endpoint].errors++
}

func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := s.endTime.Sub(s.startTime)
	var b strings.Builder
	line := strings.Repeat("=", 64)

	fmt.Fprintf(&b, "\n%s\n%40s\n%s\n\n", line, "LOAD TEST RESULTS", line)
	fmt.Fprintf(&b, "Duration:        %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "Total Requests:  %d\n", s.totalRequests)
	fmt.Fprintf(&b, "Successful:      %d (%.1f%%)\n", s.successRequests, percent(s.successRequests, s.totalRequests))
	fmt.Fprintf(&b, "Failed:          %d (%.1f%%)\n", s.failedRequests, percent(s.failedRequests, s.totalRequests))
	if secs := duration.Seconds(); secs > 0 {
		fmt.Fprintf(&b, "Requests/sec:    %.2f\n", float64(s.totalRequests)/secs)
	}
	b.WriteString("\n")

	if len(s.responseTimes) > 0 {
		b.WriteString("Response Times (ms):\n")
		fmt.Fprintf(&b, "  Average:  %d\n", average(s.responseTimes))
		fmt.Fprintf(&b, "  p50:      %d\n", calculatePercentile(s.responseTimes, 0.50))
		fmt.Fprintf(&b, "  p95:      %d\n", calculatePercentile(s.responseTimes, 0.95))
		fmt.Fprintf(&b, "  p99:      %d\n\n", calculatePercentile(s.responseTimes, 0.99))
	}

	if len(s.errors) > 0 {
		b.WriteString("Errors by Status Code:\n")
		codes := make([]int, 0, len(s.errors))
		for code := range s.errors {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			label := fmt.Sprint(code)
			if code == 0 {
				label = "transport"
			}
			fmt.Fprintf(&b, "  %s: %d\n", label, s.errors[code])
		}
		b.WriteString("\n")
	}

	if len(s.endpointStats) > 0 {
		b.WriteString("Per-Endpoint Statistics:\n")
		fmt.Fprintf(&b, "%-22s %8s %8s %8s %8s %8s %8s\n", "Endpoint", "Count", "Errors", "Avg(ms)", "p95(ms)", "Min", "Max")
		names := make([]string, 0, len(s.endpointStats))
		for name := range s.endpointStats {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			ep := s.endpointStats[name]
			if ep.count == 0 {
				continue
			}
			fmt.Fprintf(&b, "%-22s %8d %8d %8d %8d %8d %8d\n",
				name, ep.count, ep.errors, ep.total/ep.count, calculatePercentile(ep.times, 0.95), ep.minTime, ep.maxTime)
		}
		b.WriteString("\n")
	}

	b.WriteString(line + "\n")
	return b.String()
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func average(times []int64) int64 {
	if len(times) == 0 {
		return 0
	}
	var sum int64
	for _, t := range times {
		sum += t
	}
	return sum / int64(len(times))
}

func calculatePercentile(times []int64, percentile float64) int64 {
	if len(times) == 0 {
		return 0
	}
	sorted := slices.Clone(times)
	slices.Sort(sorted)
	index := min(int(float64(len(sorted))*percentile), len(sorted)-1)
	return sorted[index]
}
