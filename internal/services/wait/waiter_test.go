package wait

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/models"
)

// fakePage answers Evaluate through a scripted function and round-trips the
// value through JSON like a real backend
type fakePage struct {
	mu       sync.Mutex
	evaluate func(expression string) (interface{}, error)
	url      string
	title    string
	calls    int
}

func (p *fakePage) Evaluate(ctx context.Context, expression string, out interface{}) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	value, err := p.evaluate(expression)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *fakePage) Location(ctx context.Context) (string, error) { return p.url, nil }

func (p *fakePage) Title(ctx context.Context) (string, error) { return p.title, nil }

func (p *fakePage) evaluations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func elements(els ...map[string]interface{}) []map[string]interface{} {
	return els
}

func el(text string, visible bool) map[string]interface{} {
	return map[string]interface{}{"visible": visible, "enabled": true, "text": text}
}

func TestAwait_ReturnsAsSoonAsConditionHolds(t *testing.T) {
	start := time.Now()
	page := &fakePage{evaluate: func(string) (interface{}, error) {
		if time.Since(start) >= 300*time.Millisecond {
			return elements(el("Ready", true)), nil
		}
		return elements(el("Loading", true)), nil
	}}

	text, err := Await(context.Background(), page, TextEquals(ID("status"), "Ready"), 5*time.Second, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "Ready", text)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestAwait_FirstCheckIsImmediate(t *testing.T) {
	page := &fakePage{title: "Swag Labs"}

	start := time.Now()
	title, err := Await(context.Background(), page, TitleEquals("Swag Labs"), time.Second, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "Swag Labs", title)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAwait_TimeoutCarriesDescriptionAndLastState(t *testing.T) {
	page := &fakePage{evaluate: func(string) (interface{}, error) {
		return elements(el("Loading", true)), nil
	}}
	cond := TextEquals(CSS("#status"), "Ready")

	start := time.Now()
	_, err := Await(context.Background(), page, cond, 200*time.Millisecond, 50*time.Millisecond)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, cond.Description, timeoutErr.Description)
	assert.Equal(t, `text "Loading"`, timeoutErr.LastObserved)
	assert.Equal(t, 200*time.Millisecond, timeoutErr.Timeout)
	assert.GreaterOrEqual(t, timeoutErr.Attempts, 3)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Contains(t, err.Error(), `text of css=#status to be "Ready"`)
}

func TestAwait_NotReadyErrorsKeepPolling(t *testing.T) {
	start := time.Now()
	page := &fakePage{evaluate: func(string) (interface{}, error) {
		if time.Since(start) < 120*time.Millisecond {
			return elements(), nil
		}
		return elements(el("", true)), nil
	}}

	ok, err := Await(context.Background(), page, Visible(CSS(".banner")), 2*time.Second, 40*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, page.evaluations(), 1)
}

func TestAwait_TimeoutAfterNotReadyKeepsLastError(t *testing.T) {
	page := &fakePage{evaluate: func(string) (interface{}, error) {
		return elements(), nil
	}}

	_, err := Await(context.Background(), page, Visible(XPath("//div[@id='x']")), 100*time.Millisecond, 30*time.Millisecond)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.ErrorIs(t, err, ErrNoSuchElement)
}

func TestAwait_UnrelatedErrorPropagatesImmediately(t *testing.T) {
	scriptErr := errors.New("exception: ReferenceError: foo is not defined")
	page := &fakePage{evaluate: func(string) (interface{}, error) {
		return nil, scriptErr
	}}

	start := time.Now()
	_, err := Await(context.Background(), page, JSTrue("foo.bar"), 5*time.Second, 100*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, scriptErr)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, page.evaluations())

	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
}

func TestAwait_ContextCancellation(t *testing.T) {
	page := &fakePage{title: "Loading"}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := Await(ctx, page, TitleEquals("Done"), 5*time.Second, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait_MissingCheck(t *testing.T) {
	_, err := Await(context.Background(), &fakePage{}, Condition[bool]{Description: "nothing"}, time.Second, 0)
	assert.Error(t, err)
}

func TestWaiter_UsesSessionDefaults(t *testing.T) {
	cfg := models.SessionConfig{ExplicitWait: 150 * time.Millisecond, PollInterval: 25 * time.Millisecond}
	w := NewWaiter(cfg, arbor.NewNoOpLogger())
	assert.Equal(t, 150*time.Millisecond, w.Timeout)
	assert.Equal(t, 25*time.Millisecond, w.Interval)

	page := &fakePage{
		url:      "https://www.saucedemo.com/",
		evaluate: func(string) (interface{}, error) { return false, nil },
	}
	err := w.Until(context.Background(), page, JSTrue("false"))
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))

	url, err := For(context.Background(), w.WithTimeout(time.Second), page, URLContains("saucedemo"))
	require.NoError(t, err)
	assert.Equal(t, "https://www.saucedemo.com/", url)
	assert.Equal(t, 150*time.Millisecond, w.Timeout, "WithTimeout must not modify the original")
}

func TestUntil_AcceptsAnyResultType(t *testing.T) {
	w := NewWaiter(models.SessionConfig{ExplicitWait: 100 * time.Millisecond, PollInterval: 10 * time.Millisecond}, arbor.NewNoOpLogger())
	page := &fakePage{
		url:   "https://www.saucedemo.com/v1/inventory.html",
		title: "Swag Labs",
		evaluate: func(string) (interface{}, error) {
			return elements(el("a", true), el("b", true)), nil
		},
	}
	ctx := context.Background()

	require.NoError(t, Until(ctx, w, page, URLContains("inventory")))
	require.NoError(t, Until(ctx, w, page, TitleEquals("Swag Labs")))
	require.NoError(t, Until(ctx, w, page, CountEquals(CSS(".inventory_item"), 2)))

	err := Until(ctx, w, page, URLContains("checkout"))
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Contains(t, timeoutErr.LastObserved, "inventory.html")
}
