package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-gateway/internal/config"
	"github.com/hackgods/clinic-booking-gateway/internal/session"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	StaffRatio  float64
	StripeRatio float64
	Services    int
	Dentists    int
	JWTSecret   string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Start   OperationMetrics
	Draft   OperationMetrics
	Confirm OperationMetrics
	Payment OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	metrics Metrics
	logger  *logging.Logger
}

// actor is one simulated caller with its own token and fake data source.
type actor struct {
	token   string
	staff   bool
	faker   *gofakeit.Faker
	patient string
}

func main() {
	logger := logging.New(getEnv("LOG_LEVEL", "info")).With("service", "simulate")
	logger.Info("simulator starting")

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"duration", cfg.Duration.String(),
		"workers", cfg.Workers,
		"staff_ratio", cfg.StaffRatio,
		"stripe_ratio", cfg.StripeRatio,
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:"+baseCfg.HTTPPort),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		StaffRatio:  getFloat("SIM_STAFF_RATIO", 0.2),
		StripeRatio: getFloat("SIM_STRIPE_RATIO", 0.3),
		Services:    getInt("SIM_SERVICES", 12),
		Dentists:    getInt("SIM_DENTISTS", 8),
		JWTSecret:   baseCfg.JWTSecret,
	}

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Services <= 0 || cfg.Dentists <= 0 {
		return cfg, fmt.Errorf("SIM_SERVICES and SIM_DENTISTS must be > 0")
	}
	return cfg, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration.String(), "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	a, err := s.newActor(uint64(time.Now().UnixNano()) + uint64(workerID))
	if err != nil {
		s.logger.Error("could not create actor", "worker", workerID, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.walk(ctx, a)
		}
	}
}

func (s *Simulator) newActor(seed uint64) (*actor, error) {
	f := gofakeit.New(seed)
	staff := f.Float64Range(0, 1) < s.config.StaffRatio

	p := session.Profile{
		ID:          uuid.NewString(),
		FullName:    f.Name(),
		Phone:       f.Phone(),
		DateOfBirth: f.DateRange(time.Now().AddDate(-80, 0, 0), time.Now().AddDate(-18, 0, 0)).Format("2006-01-02"),
		Roles:       []session.Role{session.RolePatient},
	}
	if staff {
		p.Roles = []session.Role{session.RoleReceptionist}
	}

	token, err := session.IssueToken(s.config.JWTSecret, p, s.config.Duration+time.Hour)
	if err != nil {
		return nil, err
	}
	return &actor{token: token, staff: staff, faker: f, patient: uuid.NewString()}, nil
}

// walk drives one booking from a clean draft to the payment link.
func (s *Simulator) walk(ctx context.Context, a *actor) {
	status, _ := s.call(ctx, a, http.MethodPost, "/booking/start", nil, &s.metrics.Start, http.StatusNoContent)
	if status != http.StatusNoContent {
		return
	}

	f := a.faker
	date := f.DateRange(time.Now().AddDate(0, 0, 1), time.Now().AddDate(0, 0, 30)).Format("2006-01-02")
	fields := []struct {
		name  string
		value any
	}{
		{"service", strconv.Itoa(f.Number(1, s.config.Services))},
		{"dentist", strconv.Itoa(f.Number(1, s.config.Dentists))},
		{"date", date},
		{"slots", []string{strconv.Itoa(f.Number(1, 40))}},
	}
	if f.Bool() {
		fields = append(fields, struct {
			name  string
			value any
		}{"addon", strconv.Itoa(f.Number(1, 5))})
	}

	for _, fld := range fields {
		status, _ := s.call(ctx, a, http.MethodPut, "/booking/draft/"+fld.name,
			map[string]any{"value": fld.value}, &s.metrics.Draft, http.StatusOK)
		if status != http.StatusOK {
			return
		}
	}

	confirm := map[string]any{"notes": "booked by " + f.Name()}
	if a.staff {
		confirm["patient_id"] = a.patient
	}
	status, body := s.call(ctx, a, http.MethodPost, "/booking/confirm", confirm, &s.metrics.Confirm, http.StatusCreated)
	if status != http.StatusCreated {
		return
	}

	var confirmed struct {
		Reservation json.RawMessage `json:"reservation"`
		Next        string          `json:"next"`
	}
	if err := json.Unmarshal(body, &confirmed); err != nil || confirmed.Next != "select_payment" {
		return
	}

	gateway := "vnpay"
	if f.Float64Range(0, 1) < s.config.StripeRatio {
		gateway = "stripe"
	}
	s.call(ctx, a, http.MethodPost, "/booking/payment", map[string]any{
		"gateway":     gateway,
		"reservation": confirmed.Reservation,
	}, &s.metrics.Payment, http.StatusOK)
}

// call returns 0 as the status when the request never produced a response.
func (s *Simulator) call(ctx context.Context, a *actor, method, path string, payload any, om *OperationMetrics, want int) (int, []byte) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, nil
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, false, false)
		}
		return 0, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	om.Record(latency, resp.StatusCode == want, resp.StatusCode == http.StatusConflict)
	return resp.StatusCode, body
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Start", &s.metrics.Start)
	printOperationReport("Draft field", &s.metrics.Draft)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Payment link", &s.metrics.Payment)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
