package models

import "time"

// Source identifies which resolution strategy produced an executable.
type Source string

const (
	SourceLocal         Source = "LOCAL"
	SourceCache         Source = "CACHE"
	SourceDownloaded    Source = "DOWNLOADED"
	SourceSystemPath    Source = "SYSTEM_PATH"
	SourceCommonInstall Source = "COMMON_INSTALL"
)

// IsValid checks if the Source is a known resolution source
func (s Source) IsValid() bool {
	switch s {
	case SourceLocal, SourceCache, SourceDownloaded, SourceSystemPath, SourceCommonInstall:
		return true
	}
	return false
}

// Executable is a resolved native automation binary. Values are immutable once
// returned by the resolver and are shared between workers.
type Executable struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Source     Source    `json:"source"`
	ResolvedAt time.Time `json:"resolved_at"`
}
