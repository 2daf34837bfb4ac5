package meeting

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
)

const (
	defaultBaseURL = "https://meet.jit.si"
	defaultPrefix  = "dat-"
	roomTokenLen   = 10
)

// JitsiConfig configures room link allocation
type JitsiConfig struct {
	BaseURL string
	Prefix  string
}

// JitsiProvider allocates public Jitsi Meet rooms. Rooms need no
// provisioning call; the first participant to join creates them.
type JitsiProvider struct {
	baseURL string
	prefix  string
	token   func() string
}

// NewJitsiProvider creates a Jitsi meeting provider
func NewJitsiProvider(cfg JitsiConfig) providers.MeetingRoomProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &JitsiProvider{
		baseURL: baseURL,
		prefix:  prefix,
		token:   roomToken,
	}
}

// AllocateMeetingLink returns <base>/<prefix><10 hex chars>
func (p *JitsiProvider) AllocateMeetingLink(ctx context.Context) string {
	return p.baseURL + "/" + p.prefix + p.token()
}

func roomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:roomTokenLen]
}
