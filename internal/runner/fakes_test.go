package runner

import (
	"context"
	"sync"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

type fakeBrowser struct {
	mu     sync.Mutex
	url    string
	closed int
}

func (b *fakeBrowser) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if p, ok := out.(*string); ok {
		*p = "complete"
	}
	if p, ok := out.(*bool); ok {
		*p = true
	}
	return nil
}

func (b *fakeBrowser) Location(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url, nil
}

func (b *fakeBrowser) Title(ctx context.Context) (string, error) { return "Swag Labs", nil }

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = url
	return nil
}

func (b *fakeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (b *fakeBrowser) SetTimeouts(timeouts interfaces.BrowserTimeouts) {}

func (b *fakeBrowser) SetWindowSize(ctx context.Context, width, height int) error { return nil }

func (b *fakeBrowser) Maximize(ctx context.Context) error { return nil }

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

type fakeLauncher struct {
	engine models.Engine
	err    error

	mu       sync.Mutex
	browsers []*fakeBrowser
}

func (l *fakeLauncher) Engine() models.Engine { return l.engine }

func (l *fakeLauncher) Launch(ctx context.Context, req interfaces.LaunchRequest) (interfaces.Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	b := &fakeBrowser{url: "about:blank"}
	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

func (l *fakeLauncher) launched() []*fakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeBrowser(nil), l.browsers...)
}

type fakeResolver struct {
	err error
}

func (r *fakeResolver) Resolve(ctx context.Context, name string) (models.Executable, error) {
	if r.err != nil {
		return models.Executable{}, r.err
	}
	return models.Executable{Name: name, Path: "/opt/" + name, Source: models.SourceLocal}, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (r *eventRecorder) handle(ctx context.Context, event models.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(eventType models.LifecycleEventType) []models.LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LifecycleEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
