package service

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"sync"
	"time"

	"github.com/adwski/interest-chat/backend/match"
	"github.com/adwski/interest-chat/backend/model"
	"github.com/adwski/interest-chat/backend/storage/memory"
	"github.com/rs/zerolog"
)

const (
	defaultSweepInterval = 5 * time.Second

	noticeConnected = "Connected to the chat server!"
	noticeWaiting   = "Waiting for someone with similar interests..."
	noticeExpired   = "Nobody with similar interests showed up, try again."
)

var (
	ErrConnect = errors.New("unable to connect")
)

type (
	Switch interface {
		Connect(connID string, wire model.Wire) error
		Disconnect(connID string)
		JoinRoom(connID, roomID string)
		LeaveRoom(connID, roomID string)
		Send(connID string, msg model.Outbound) bool
		BroadcastToRoom(roomID string, msg model.Outbound, exclude string) int
	}

	// Service drives connections through idle, waiting and matched states.
	// Pool, rooms and registry are mutated only under stateMx.
	// Outbound effects of one operation are delivered under deliveryMx,
	// which is taken before stateMx is released, so peers observe events in
	// the order state changed while no network delivery happens with
	// stateMx held.
	Service struct {
		sw       Switch
		engine   *match.Engine
		pool     *memory.Pool
		rooms    *memory.Rooms
		registry *memory.Registry
		now      func() time.Time

		waitTTL       time.Duration
		sweepInterval time.Duration

		stateMx    *sync.Mutex
		deliveryMx *sync.Mutex

		logger zerolog.Logger
	}

	Config struct {
		Switch Switch
		Logger *zerolog.Logger
		// WaitTTL is how long a connection may stay in the waiting pool.
		// Zero disables expiry.
		WaitTTL       time.Duration
		SweepInterval time.Duration
		IDGenerator   func() string
		Clock         func() time.Time
	}

	Stats struct {
		Connections int `json:"connections"`
		Waiting     int `json:"waiting"`
		Rooms       int `json:"rooms"`
	}
)

func NewService(cfg Config) *Service {
	var (
		pool  = memory.NewPool()
		rooms = memory.NewRooms()
	)
	svc := &Service{
		sw: cfg.Switch,
		engine: match.NewEngine(match.Config{
			Pool:        pool,
			RoomStore:   rooms,
			IDGenerator: cfg.IDGenerator,
		}),
		pool:          pool,
		rooms:         rooms,
		registry:      memory.NewRegistry(),
		now:           cfg.Clock,
		waitTTL:       cfg.WaitTTL,
		sweepInterval: cfg.SweepInterval,
		stateMx:       &sync.Mutex{},
		deliveryMx:    &sync.Mutex{},
		logger:        cfg.Logger.With().Str("component", "coordinator").Logger(),
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.sweepInterval <= 0 {
		svc.sweepInterval = defaultSweepInterval
	}
	return svc
}

// Connect registers the connection in idle state and acknowledges it.
func (svc *Service) Connect(connID string, wire model.Wire) error {
	if err := svc.sw.Connect(connID, wire); err != nil {
		return errors.Join(ErrConnect, err)
	}
	var errAdd error
	svc.atomically(func(out *outbox) {
		if errAdd = svc.registry.Add(connID); errAdd != nil {
			svc.logger.Error().Err(errAdd).
				Str("connID", connID).
				Str("invariant", "registry").
				Msg("switch and registry diverged")
			out.disconnect(connID)
			return
		}
		out.send(connID, model.Outbound{
			Event: model.EventConnected,
			Data:  model.NoticePayload{Message: noticeConnected},
		})
	})
	if errAdd != nil {
		return errors.Join(ErrConnect, errAdd)
	}
	svc.logger.Debug().Str("connID", connID).Msg("connection registered")
	return nil
}

// Disconnect drops the connection from the pool and its room.
// Repeated calls are no-ops.
func (svc *Service) Disconnect(connID string) {
	svc.atomically(func(out *outbox) {
		if !svc.registry.Remove(connID) {
			return
		}
		svc.pool.Remove(connID)
		svc.leaveRoom(connID, out)
		out.disconnect(connID)
		svc.logger.Debug().Str("connID", connID).Msg("connection unregistered")
	})
}

// Handle decodes an inbound frame and dispatches it. Malformed frames
// and unknown events are dropped.
func (svc *Service) Handle(ev model.Inbound) {
	logger := svc.logger.With().Str("connID", ev.SRC).Str("event", ev.Event).Logger()

	switch ev.Event {
	case model.EventFindPartner:
		var p model.FindPartnerPayload
		if decode(ev.Data, &p, &logger) {
			svc.FindPartner(ev.SRC, p)
		}
	case model.EventMessage:
		var p model.MessagePayload
		if decode(ev.Data, &p, &logger) {
			svc.Message(ev.SRC, p)
		}
	case model.EventTyping, model.EventStopTyping:
		var p model.RoomPayload
		if decode(ev.Data, &p, &logger) {
			svc.Typing(ev.SRC, ev.Event, p)
		}
	case model.EventLeave:
		svc.Leave(ev.SRC)
	default:
		logger.Debug().Msg("unknown event dropped")
	}
}

func decode(data json.RawMessage, v any, logger *zerolog.Logger) bool {
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Debug().Err(err).Msg("malformed payload dropped")
		return false
	}
	return true
}

// FindPartner leaves the current room or waiting slot and either matches
// the connection with the oldest compatible waiter or enqueues it.
func (svc *Service) FindPartner(connID string, p model.FindPartnerPayload) {
	interests := model.NewInterests(p.Interests)

	svc.atomically(func(out *outbox) {
		if !svc.registry.Has(connID) {
			svc.logger.Debug().Str("connID", connID).Msg("find_partner from unknown connection")
			return
		}
		svc.leaveRoom(connID, out)
		svc.pool.Remove(connID)

		if len(interests) == 0 {
			svc.logger.Debug().Str("connID", connID).Msg("find_partner without interests")
			return
		}

		res, ok, err := svc.engine.TryMatch(connID, interests)
		if err != nil {
			svc.logger.Error().Err(err).
				Str("connID", connID).
				Str("invariant", "room").
				Msg("match failed")
		}
		if ok {
			matched := model.Outbound{
				Event: model.EventMatched,
				Data:  model.MatchedPayload{Room: res.Room.ID, Common: res.Common},
			}
			for _, c := range res.Room.Participants {
				out.join(c, res.Room.ID)
				out.send(c, matched)
			}
			svc.logger.Debug().
				Str("connID", connID).
				Str("partner", res.Partner).
				Str("roomID", res.Room.ID).
				Strs("common", res.Common).
				Msg("matched")
			return
		}

		svc.pool.Enqueue(model.WaitingEntry{
			ConnID:    connID,
			Interests: interests,
			Since:     svc.now(),
		})
		out.send(connID, model.Outbound{
			Event: model.EventWaiting,
			Data:  model.NoticePayload{Message: noticeWaiting},
		})
		svc.logger.Debug().Str("connID", connID).Msg("waiting for partner")
	})
}

// Message relays escaped text to the other participants of the sender's room.
func (svc *Service) Message(connID string, p model.MessagePayload) {
	if p.Room == "" {
		return
	}
	msg := model.Outbound{
		Event: model.EventNewMessage,
		Data:  model.NoticePayload{Message: html.EscapeString(p.Message)},
	}
	svc.atomically(func(out *outbox) {
		room, err := svc.rooms.Get(p.Room)
		if err != nil || !room.Has(connID) {
			svc.logger.Debug().
				Str("connID", connID).
				Str("roomID", p.Room).
				Msg("message to foreign room dropped")
			return
		}
		out.broadcast(room.ID, msg, connID)
	})
}

// Typing relays typing or stop_typing to the sender's peer.
func (svc *Service) Typing(connID, event string, p model.RoomPayload) {
	if p.Room == "" {
		return
	}
	svc.atomically(func(out *outbox) {
		room, err := svc.rooms.Get(p.Room)
		if err != nil {
			return
		}
		peer, err := svc.rooms.OtherParticipant(room, connID)
		if err != nil {
			svc.logger.Debug().
				Str("connID", connID).
				Str("roomID", p.Room).
				Msg("typing to foreign room dropped")
			return
		}
		out.send(peer, model.Outbound{Event: event})
	})
}

// Leave returns the connection to idle state.
func (svc *Service) Leave(connID string) {
	svc.atomically(func(out *outbox) {
		svc.pool.Remove(connID)
		svc.leaveRoom(connID, out)
	})
}

// ExpireWaiting removes waiters older than the configured TTL
// and returns how many were removed.
func (svc *Service) ExpireWaiting() int {
	if svc.waitTTL <= 0 {
		return 0
	}
	var n int
	svc.atomically(func(out *outbox) {
		expired := svc.pool.Expire(svc.now().Add(-svc.waitTTL))
		for _, e := range expired {
			out.send(e.ConnID, model.Outbound{
				Event: model.EventWaitingExpired,
				Data:  model.NoticePayload{Message: noticeExpired},
			})
			svc.logger.Debug().Str("connID", e.ConnID).Msg("waiting expired")
		}
		n = len(expired)
	})
	return n
}

// Run sweeps expired waiters until ctx is done.
func (svc *Service) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer func() {
		svc.logger.Debug().Msg("sweeper stopped")
		wg.Done()
	}()
	if svc.waitTTL <= 0 {
		return
	}

	ticker := time.NewTicker(svc.sweepInterval)
	defer ticker.Stop()

	svc.logger.Info().Dur("ttl", svc.waitTTL).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ExpireWaiting()
		}
	}
}

func (svc *Service) Stats() Stats {
	svc.stateMx.Lock()
	defer svc.stateMx.Unlock()

	return Stats{
		Connections: svc.registry.Len(),
		Waiting:     svc.pool.Len(),
		Rooms:       svc.rooms.Len(),
	}
}

// leaveRoom tears down the connection's room and notifies the peer.
// Must be called with stateMx held.
func (svc *Service) leaveRoom(connID string, out *outbox) {
	room, ok := svc.rooms.FindByConnection(connID)
	if !ok {
		return
	}
	peer, err := svc.rooms.OtherParticipant(room, connID)
	if err != nil {
		svc.logger.Error().Err(err).
			Str("connID", connID).
			Str("roomID", room.ID).
			Str("invariant", "reverse-index").
			Msg("room index points to a room without this connection")
		return
	}
	svc.rooms.Destroy(room.ID)

	out.leave(connID, room.ID)
	out.leave(peer, room.ID)
	out.send(peer, model.Outbound{Event: model.EventPartnerLeft})

	svc.logger.Debug().
		Str("connID", connID).
		Str("partner", peer).
		Str("roomID", room.ID).
		Msg("room destroyed")
}

// atomically runs fn under stateMx and then delivers collected effects.
func (svc *Service) atomically(fn func(out *outbox)) {
	var out outbox

	svc.stateMx.Lock()
	fn(&out)
	svc.deliveryMx.Lock()
	svc.stateMx.Unlock()
	defer svc.deliveryMx.Unlock()

	out.flush(svc.sw)
}
