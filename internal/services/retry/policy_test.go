package retry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/vantage/internal/models"
)

func failure(instanceID string) models.FailureEvent {
	return models.FailureEvent{InstanceID: instanceID, TestName: "TestLogin"}
}

func TestPolicy_MaxTwoThreeFailures(t *testing.T) {
	p := NewPolicy(2)

	var got []bool
	for i := 0; i < 3; i++ {
		got = append(got, p.ShouldRetry(failure("TestLogin#0")))
	}

	assert.Equal(t, []bool{true, true, false}, got)
	assert.Equal(t, 3, p.Attempts())
}

func TestPolicy_GrantsMinOfMaxAndFailures(t *testing.T) {
	tests := []struct {
		max      int
		failures int
	}{
		{max: 0, failures: 3},
		{max: 1, failures: 1},
		{max: 1, failures: 4},
		{max: 3, failures: 2},
		{max: 5, failures: 5},
	}

	for _, tt := range tests {
		p := NewPolicy(tt.max)
		granted := 0
		for i := 0; i < tt.failures; i++ {
			if p.ShouldRetry(failure("x")) {
				granted++
			}
		}
		assert.Equal(t, min(tt.max, tt.failures), granted, "max=%d failures=%d", tt.max, tt.failures)
	}
}

func TestPolicy_NegativeMax(t *testing.T) {
	p := NewPolicy(-1)
	assert.Equal(t, 0, p.Max())
	assert.False(t, p.ShouldRetry(failure("x")))
}

func TestTracker_InvocationsAreIndependent(t *testing.T) {
	tracker := NewTracker(1)
	first := InstanceID("TestCheckout", 0, "standard_user")
	second := InstanceID("TestCheckout", 1, "problem_user")

	assert.NotEqual(t, first, second)
	assert.True(t, tracker.ShouldRetry(failure(first)))
	assert.False(t, tracker.ShouldRetry(failure(first)))
	assert.True(t, tracker.ShouldRetry(failure(second)))
	assert.Equal(t, []string{first, second}, tracker.Instances())

	tracker.Forget(first)
	assert.True(t, tracker.ShouldRetry(failure(first)), "forgotten invocation starts fresh")
}

func TestTracker_ConcurrentFailures(t *testing.T) {
	tracker := NewTracker(10)
	id := InstanceID("TestSearch", 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.ShouldRetry(failure(id)) {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.Equal(t, 50, tracker.For(id).Attempts())
}

func TestInstanceID(t *testing.T) {
	assert.Equal(t, "TestLogin#0", InstanceID("TestLogin", 0))
	assert.Equal(t, "TestLogin#2|locked_out_user|true", InstanceID("TestLogin", 2, "locked_out_user", true))
}
