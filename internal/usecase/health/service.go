package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cardex/internal/domain"
)

// Status is the overall verdict reported by /health.
type Status string

const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded" // a gateway is failing or unconfigured
	Unhealthy Status = "error"    // the record store is unreachable
)

// CheckResult is the verdict for one dependency.
type CheckResult string

const (
	CheckOK            CheckResult = "ok"
	CheckError         CheckResult = "error"
	CheckNotConfigured CheckResult = "not_configured"
)

// StoreCheck names the record store entry in Report.Checks.
const StoreCheck = "store"

// DefaultProbeTimeout bounds each dependency probe.
const DefaultProbeTimeout = 3 * time.Second

// Report is the outcome of one Check.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name string
	run  func(context.Context) error
}

// Service probes the record store and the registered gateways in parallel.
type Service struct {
	store   StorePinger
	probes  []probe
	timeout time.Duration
}

// New returns a Service that always probes store.
func New(store StorePinger) *Service {
	return &Service{store: store, timeout: DefaultProbeTimeout}
}

// WithChecker registers a gateway under name. A nil checker is skipped.
func (s *Service) WithChecker(name string, c Checker) *Service {
	if c != nil {
		s.probes = append(s.probes, probe{name: name, run: c.HealthCheck})
	}
	return s
}

// WithTimeout changes the per-probe deadline. Non-positive values are ignored.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes every dependency. A store failure makes the service
// Unhealthy; any gateway failure only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	all := append([]probe{{name: StoreCheck, run: s.store.Ping}}, s.probes...)

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(all))
		g      errgroup.Group
	)
	for _, p := range all {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := classify(p.run(pctx))

			mu.Lock()
			checks[p.name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: verdict(checks), Checks: checks}
}

func classify(err error) CheckResult {
	switch {
	case err == nil:
		return CheckOK
	case errors.Is(err, domain.ErrNotConfigured):
		return CheckNotConfigured
	default:
		return CheckError
	}
}

func verdict(checks map[string]CheckResult) Status {
	if checks[StoreCheck] != CheckOK {
		return Unhealthy
	}
	for _, r := range checks {
		if r != CheckOK {
			return Degraded
		}
	}
	return Healthy
}
