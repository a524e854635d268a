package retry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/vantage/internal/models"
)

// Policy decides whether one test invocation should run again after a failure.
// The attempt counter only increases.
type Policy struct {
	mu      sync.Mutex
	max     int
	attempt int
}

// NewPolicy creates a policy granting up to maxRetries retries
func NewPolicy(maxRetries int) *Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Policy{max: maxRetries}
}

// ShouldRetry records a failure and reports whether another attempt is allowed
func (p *Policy) ShouldRetry(event models.FailureEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempt++
	return p.attempt <= p.max
}

// Attempts returns the number of failures recorded
func (p *Policy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt
}

func (p *Policy) Max() int { return p.max }

// InstanceID identifies one invocation of a test. Parameterised invocations of
// the same test get distinct ids so they never share retry state.
func InstanceID(testName string, invocation int, params ...interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s#%d", testName, invocation)
	for _, p := range params {
		fmt.Fprintf(&b, "|%v", p)
	}
	return b.String()
}

// Tracker hands out one Policy per test invocation
type Tracker struct {
	mu       sync.Mutex
	max      int
	policies map[string]*Policy
}

// NewTracker creates a tracker whose policies allow maxRetries retries
func NewTracker(maxRetries int) *Tracker {
	return &Tracker{
		max:      maxRetries,
		policies: make(map[string]*Policy),
	}
}

// For returns the policy for instanceID, creating it on first use
func (t *Tracker) For(instanceID string) *Policy {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.policies[instanceID]
	if !ok {
		p = NewPolicy(t.max)
		t.policies[instanceID] = p
	}
	return p
}

// ShouldRetry routes event to the policy of its invocation
func (t *Tracker) ShouldRetry(event models.FailureEvent) bool {
	return t.For(event.InstanceID).ShouldRetry(event)
}

// Forget drops the state of a finished invocation
func (t *Tracker) Forget(instanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.policies, instanceID)
}

// Instances returns the tracked invocation ids, sorted
func (t *Tracker) Instances() []string {
	t.mu.Lock()
	ids := make([]string, 0, len(t.policies))
	for id := range t.policies {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	sort.Strings(ids)
	return ids
}
