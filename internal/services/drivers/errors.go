package drivers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/vantage/internal/models"
)

// ErrSkipped marks a strategy that did not run because it is disabled by configuration
var ErrSkipped = errors.New("strategy skipped")

// ErrNotFound marks a strategy that ran but did not find the executable
var ErrNotFound = errors.New("executable not found")

// Attempt records why one strategy failed to produce an executable
type Attempt struct {
	Source models.Source
	Reason error
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s: %v", a.Source, a.Reason)
}

// ResolutionError is returned when every strategy failed. It is the only hard
// failure of the resolver.
type ResolutionError struct {
	Name     string
	Attempts []Attempt
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "could not resolve executable %q", e.Name)
	if len(e.Attempts) == 0 {
		b.WriteString(": no resolution strategies configured")
		return b.String()
	}
	b.WriteString(", tried:")
	for _, a := range e.Attempts {
		b.WriteString("\n  - ")
		b.WriteString(a.String())
	}
	return b.String()
}

// Sources lists the sources that were attempted, in order
func (e *ResolutionError) Sources() []models.Source {
	sources := make([]models.Source, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		sources = append(sources, a.Source)
	}
	return sources
}
