// internal/types/interfaces.go
package types

import (
	"context"
)

// Channel is the host bridge as seen from the panel: one outbound post
// operation and one inbound subscription.
type Channel interface {
	Post(ctx context.Context, event OutboundEvent) error
	Subscribe(fn func(raw []byte)) (cancel func())
}

// FileIndex supplies known workspace paths. Folders end in "/".
type FileIndex interface {
	Paths() []string
}

type Clipboard interface {
	WriteText(text string) error
}

// Reporter receives named telemetry events.
type Reporter interface {
	Send(name string, properties map[string]string, measurements map[string]float64)
}

// SettingsStore holds the active model configuration.
type SettingsStore interface {
	Active() APIConfiguration
	SetActive(cfg APIConfiguration) error
	Models() []APIConfiguration
}
