package upstream

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// HostSupplier hands out the storefront backend host to talk to. The current
// host is sticky so that a catalog scan keeps reading one backend's
// pagination; it only moves when a request against it fails.
type HostSupplier interface {
	Current() string
	Failover(failed string) string
}

type hostSupplier struct {
	hosts   []string
	current int
	mutex   sync.Mutex
}

// NewHostSupplier checks every host's health endpoint in parallel and keeps
// the healthy ones in configured order. When none answers, all configured
// hosts are kept so that requests still surface real errors.
func NewHostSupplier(ctx context.Context, hosts []string, healthPath string) (HostSupplier, error) {
	if len(hosts) == 0 {
		return nil, errors.New("no storefront hosts configured")
	}
	if len(hosts) == 1 {
		return &hostSupplier{hosts: hosts}, nil
	}

	log.Infof("🔄 Checking %d storefront hosts...", len(hosts))

	healthy := make([]bool, len(hosts))
	semaphore := make(chan struct{}, 8)
	var wg sync.WaitGroup

	for i, host := range hosts {
		wg.Add(1)

		go func(index int, host string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			healthy[index] = isHostHealthy(ctx, host+healthPath)
			if healthy[index] {
				log.Infof("✅ Storefront host %s is healthy", host)
			} else {
				log.Warnf("❌ Storefront host %s failed its health check", host)
			}
		}(i, host)
	}

	wg.Wait()

	valid := make([]string, 0, len(hosts))
	for i, host := range hosts {
		if healthy[i] {
			valid = append(valid, host)
		}
	}

	if len(valid) == 0 {
		log.Warnf("⚠️ No storefront host passed its health check, using all %d configured hosts", len(hosts))
		valid = append(valid, hosts...)
	}

	log.Infof("✅ HostSupplier initialized with %d of %d hosts", len(valid), len(hosts))

	return &hostSupplier{hosts: valid}, nil
}

func (s *hostSupplier) Current() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.hosts[s.current]
}

// Failover moves to the next host if failed is still the current one, and
// returns the host to use from now on. Concurrent callers reporting the
// same failure advance the rotation once.
func (s *hostSupplier) Failover(failed string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.hosts) > 1 && s.hosts[s.current] == failed {
		s.current = (s.current + 1) % len(s.hosts)
		log.Warnf("🔄 Switching storefront host from %s to %s", failed, s.hosts[s.current])
	}

	return s.hosts[s.current]
}

func isHostHealthy(ctx context.Context, healthURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0)

	resp, err := client.R().
		SetContext(ctx).
		Get(healthURL)

	if err != nil {
		log.Debugf("Health check failed for %s: %v", healthURL, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Health check failed for %s with status: %s", healthURL, resp.Status())
		return false
	}

	return true
}
