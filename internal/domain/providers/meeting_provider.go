package providers

import "context"

// MeetingRoomProvider allocates video rooms for tele-consultations
type MeetingRoomProvider interface {
	// AllocateMeetingLink returns a new, unique meeting URL
	AllocateMeetingLink(ctx context.Context) string
}
