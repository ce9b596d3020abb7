package _switch

import (
	"errors"
	"sync"

	"github.com/adwski/interest-chat/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyConnected = errors.New("endpoint is already connected")
)

// Switch delivers outbound events to connected endpoints and keeps
// relay groups (rooms) of endpoints.
type Switch struct {
	logger    zerolog.Logger
	mx        *sync.RWMutex
	endpoints map[string]model.Wire
	groups    map[string]map[string]struct{}
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger:    logger.With().Str("component", "switch").Logger(),
		mx:        &sync.RWMutex{},
		endpoints: make(map[string]model.Wire),
		groups:    make(map[string]map[string]struct{}),
	}
}

func (sw *Switch) Connect(endpoint string, wire model.Wire) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	if _, ok := sw.endpoints[endpoint]; ok {
		return ErrAlreadyConnected
	}
	sw.endpoints[endpoint] = wire
	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint connected")
	return nil
}

// Disconnect forgets the endpoint and removes it from every group.
func (sw *Switch) Disconnect(endpoint string) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	delete(sw.endpoints, endpoint)
	for name, group := range sw.groups {
		delete(group, endpoint)
		if len(group) == 0 {
			delete(sw.groups, name)
		}
	}
	sw.logger.Debug().Str("endpoint", endpoint).Msg("endpoint disconnected")
}

func (sw *Switch) JoinRoom(endpoint, room string) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	group, ok := sw.groups[room]
	if !ok {
		group = make(map[string]struct{})
		sw.groups[room] = group
	}
	group[endpoint] = struct{}{}
}

func (sw *Switch) LeaveRoom(endpoint, room string) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	group, ok := sw.groups[room]
	if !ok {
		return
	}
	delete(group, endpoint)
	if len(group) == 0 {
		delete(sw.groups, room)
	}
}

// Send never blocks. If the endpoint outbox is full the event is dropped.
func (sw *Switch) Send(endpoint string, msg model.Outbound) bool {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	wire, ok := sw.endpoints[endpoint]
	if !ok {
		sw.logger.Debug().
			Str("dst", endpoint).
			Str("event", msg.Event).
			Msg("cannot send, dst not found")
		return false
	}
	return send(wire.TX, endpoint, msg, &sw.logger)
}

// BroadcastToRoom sends msg to every member of room except exclude
// and returns the number of endpoints reached.
func (sw *Switch) BroadcastToRoom(room string, msg model.Outbound, exclude string) int {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	var sent int
	for endpoint := range sw.groups[room] {
		if endpoint == exclude {
			continue
		}
		wire, ok := sw.endpoints[endpoint]
		if !ok {
			continue
		}
		if send(wire.TX, endpoint, msg, &sw.logger) {
			sent++
		}
	}
	if sent == 0 {
		sw.logger.Debug().
			Str("room", room).
			Str("event", msg.Event).
			Msg("broadcast did not reach anyone")
	}
	return sent
}

func send(tx chan<- model.Outbound, dst string, msg model.Outbound, logger *zerolog.Logger) bool {
	select {
	case tx <- msg:
		logger.Trace().Str("dst", dst).Str("event", msg.Event).Msg("event is forwarded")
		return true
	default:
		logger.Error().Str("dst", dst).Str("event", msg.Event).Msg("outbox is full, event dropped")
		return false
	}
}
