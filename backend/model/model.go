package model

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventFindPartner = "find_partner"
	EventMessage     = "message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventLeave       = "leave"
)

// Outbound event names.
const (
	EventConnected      = "connected"
	EventWaiting        = "waiting"
	EventWaitingExpired = "waiting_expired"
	EventMatched        = "matched"
	EventPartnerLeft    = "partner_left"
	EventNewMessage     = "new_message"
)

// Room is a two-party relay channel.
// Participants is fixed-size so a room cannot exist with any other head count.
type Room struct {
	ID           string    `json:"room_id"`
	Participants [2]string `json:"participants"`
}

// Has reports whether connID participates in the room.
func (r *Room) Has(connID string) bool {
	return r.Participants[0] == connID || r.Participants[1] == connID
}

// Interests is a set of declared interests.
type Interests map[string]struct{}

// NewInterests builds a set from a client-supplied list,
// dropping duplicates and empty strings.
func NewInterests(list []string) Interests {
	set := make(Interests, len(list))
	for _, s := range list {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// Intersect returns interests present in both sets.
func (in Interests) Intersect(other Interests) Interests {
	common := make(Interests)
	for s := range in {
		if _, ok := other[s]; ok {
			common[s] = struct{}{}
		}
	}
	return common
}

type WaitingEntry struct {
	ConnID    string
	Interests Interests
	Since     time.Time
}

// Inbound is a frame received from a client. SRC is assigned by the server
// from the websocket session, never taken from the frame.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	SRC   string          `json:"-"`
}

// Outbound is a frame sent to a client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type FindPartnerPayload struct {
	Interests []string `json:"interests"`
}

type MessagePayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

type MatchedPayload struct {
	Room   string   `json:"room"`
	Common []string `json:"common"`
}

type Wire struct {
	TX chan Outbound
}

func NewWire(size int) Wire {
	return Wire{
		TX: make(chan Outbound, size),
	}
}
