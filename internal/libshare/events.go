package libshare

import (
	"time"

	"libshare/internal/model"
)

// Event is a notification produced by a completed mutation. Delivery is a
// collaborating concern (mail, chat, feeds); the services emit and move on.
type Event struct {
	// Type is one of the Event* constants.
	Type string `json:"type"`
	// Actor is the user who performed the operation.
	Actor string `json:"actor"`
	// RepoID is the repo the operation touched.
	RepoID string `json:"repo_id"`
	// Target is set for share events.
	Target string `json:"target,omitempty"`
	// Perm is set for share events.
	Perm string `json:"perm,omitempty"`
	// At is the service-clock time of the operation.
	At time.Time `json:"at"`
}

const (
	EventShareCompleted   = "share.completed"
	EventShareRemoved     = "share.removed"
	EventLinkCreated      = "link.created"
	EventLinkRevoked      = "link.revoked"
	EventGroupRepoCreated = "repo.group_created"
)

// EventSink receives events. Implementations must not block the caller
// beyond handing the event off; the services never wait for delivery.
type EventSink interface {
	Emit(ev Event) error
}

// NopSink discards events. Use in tests.
type NopSink struct{}

func (NopSink) Emit(Event) error { return nil }

func shareEvent(typ string, actor string, share *model.DirectShare, at time.Time) Event {
	return Event{
		Type:   typ,
		Actor:  actor,
		RepoID: share.RepoID,
		Target: share.Target.Key(),
		Perm:   share.Perm.String(),
		At:     at,
	}
}
