package memory

import (
	"errors"

	"github.com/adwski/interest-chat/backend/model"
)

var (
	ErrDuplicateRoomID = errors.New("room id already exists")
	ErrRoomNotFound    = errors.New("room is not found")
	ErrNotAParticipant = errors.New("connection is not a participant of this room")
	ErrSameConnection  = errors.New("room participants must be distinct")
	ErrAlreadyInRoom   = errors.New("connection already occupies a room")
)

// Rooms maps room ids to rooms and keeps a reverse connection index.
// Rooms is not safe for concurrent use, callers serialize access.
type Rooms struct {
	db     map[string]*model.Room
	byConn map[string]string
}

func NewRooms() *Rooms {
	return &Rooms{
		db:     make(map[string]*model.Room),
		byConn: make(map[string]string),
	}
}

// Create registers a room for exactly two distinct connections,
// neither of which may already occupy a room.
func (r *Rooms) Create(roomID, a, b string) (*model.Room, error) {
	if _, ok := r.db[roomID]; ok {
		return nil, ErrDuplicateRoomID
	}
	if a == b {
		return nil, ErrSameConnection
	}
	for _, c := range [2]string{a, b} {
		if _, ok := r.byConn[c]; ok {
			return nil, ErrAlreadyInRoom
		}
	}
	room := &model.Room{
		ID:           roomID,
		Participants: [2]string{a, b},
	}
	r.db[roomID] = room
	r.byConn[a] = roomID
	r.byConn[b] = roomID
	return room, nil
}

func (r *Rooms) Get(roomID string) (*model.Room, error) {
	room, ok := r.db[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (r *Rooms) FindByConnection(connID string) (*model.Room, bool) {
	roomID, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	return r.db[roomID], true
}

// Destroy removes the room and returns it. A second call for the same id
// returns false.
func (r *Rooms) Destroy(roomID string) (*model.Room, bool) {
	room, ok := r.db[roomID]
	if !ok {
		return nil, false
	}
	delete(r.db, roomID)
	for _, c := range room.Participants {
		if r.byConn[c] == roomID {
			delete(r.byConn, c)
		}
	}
	return room, true
}

// OtherParticipant returns the peer of connID in room.
func (r *Rooms) OtherParticipant(room *model.Room, connID string) (string, error) {
	switch connID {
	case room.Participants[0]:
		return room.Participants[1], nil
	case room.Participants[1]:
		return room.Participants[0], nil
	}
	return "", ErrNotAParticipant
}

func (r *Rooms) Len() int {
	return len(r.db)
}
