package match

import (
	"errors"
	"sort"

	"github.com/adwski/interest-chat/backend/model"
	"github.com/google/uuid"
)

var ErrCreateRoom = errors.New("unable to create room")

type (
	Pool interface {
		FindCompatible(interests model.Interests) (model.WaitingEntry, bool)
		Remove(connID string) bool
	}

	RoomStore interface {
		Create(roomID, a, b string) (*model.Room, error)
	}

	// Result describes a successful match.
	Result struct {
		Room    *model.Room
		Partner string
		Common  []string
	}

	// Engine pairs a seeker with the first compatible waiter.
	// It holds no lock of its own, callers serialize access
	// together with the pool and room store.
	Engine struct {
		pool  Pool
		rooms RoomStore
		newID func() string
	}

	Config struct {
		Pool      Pool
		RoomStore RoomStore
		// IDGenerator defaults to random UUIDs.
		IDGenerator func() string
	}
)

func NewEngine(cfg Config) *Engine {
	newID := cfg.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	return &Engine{
		pool:  cfg.Pool,
		rooms: cfg.RoomStore,
		newID: newID,
	}
}

// TryMatch returns ok=false when no waiter shares an interest with the seeker.
// On a room creation failure the pool is left untouched.
func (e *Engine) TryMatch(connID string, interests model.Interests) (Result, bool, error) {
	partner, ok := e.pool.FindCompatible(interests)
	if !ok {
		return Result{}, false, nil
	}
	room, err := e.rooms.Create(e.newID(), connID, partner.ConnID)
	if err != nil {
		return Result{}, false, errors.Join(ErrCreateRoom, err)
	}
	e.pool.Remove(partner.ConnID)

	return Result{
		Room:    room,
		Partner: partner.ConnID,
		Common:  sortedKeys(interests.Intersect(partner.Interests)),
	}, true, nil
}

func sortedKeys(set model.Interests) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
