package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

type fakeBrowser struct {
	mu          sync.Mutex
	timeouts    interfaces.BrowserTimeouts
	maximized   bool
	width       int
	height      int
	closeCalls  int
	closeErr    error
	maximizeErr error
}

func (b *fakeBrowser) Evaluate(ctx context.Context, expression string, out interface{}) error {
	return nil
}

func (b *fakeBrowser) Location(ctx context.Context) (string, error) { return "about:blank", nil }

func (b *fakeBrowser) Title(ctx context.Context) (string, error) { return "", nil }

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error { return nil }

func (b *fakeBrowser) Screenshot(ctx context.Context) ([]byte, error) { return []byte("png"), nil }

func (b *fakeBrowser) SetTimeouts(timeouts interfaces.BrowserTimeouts) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeouts = timeouts
}

func (b *fakeBrowser) SetWindowSize(ctx context.Context, width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
	return nil
}

func (b *fakeBrowser) Maximize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maximizeErr != nil {
		return b.maximizeErr
	}
	b.maximized = true
	return nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
	return b.closeErr
}

func (b *fakeBrowser) closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeCalls
}

type fakeLauncher struct {
	engine   models.Engine
	browser  *fakeBrowser
	err      error
	requests []interfaces.LaunchRequest
}

func (l *fakeLauncher) Engine() models.Engine { return l.engine }

func (l *fakeLauncher) Launch(ctx context.Context, req interfaces.LaunchRequest) (interfaces.Browser, error) {
	l.requests = append(l.requests, req)
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

type fakeResolver struct {
	err   error
	names []string
}

func (r *fakeResolver) Resolve(ctx context.Context, name string) (models.Executable, error) {
	r.names = append(r.names, name)
	if r.err != nil {
		return models.Executable{}, r.err
	}
	return models.Executable{Name: name, Path: "/opt/" + name, Source: models.SourceLocal}, nil
}

var errResolution = errors.New("could not resolve executable")
