package service

import "github.com/adwski/interest-chat/backend/model"

// outbox collects switch operations produced while state is locked.
type outbox struct {
	effects []func(Switch)
}

func (o *outbox) send(connID string, msg model.Outbound) {
	o.effects = append(o.effects, func(sw Switch) {
		sw.Send(connID, msg)
	})
}

func (o *outbox) broadcast(roomID string, msg model.Outbound, exclude string) {
	o.effects = append(o.effects, func(sw Switch) {
		sw.BroadcastToRoom(roomID, msg, exclude)
	})
}

func (o *outbox) join(connID, roomID string) {
	o.effects = append(o.effects, func(sw Switch) {
		sw.JoinRoom(connID, roomID)
	})
}

func (o *outbox) leave(connID, roomID string) {
	o.effects = append(o.effects, func(sw Switch) {
		sw.LeaveRoom(connID, roomID)
	})
}

func (o *outbox) disconnect(connID string) {
	o.effects = append(o.effects, func(sw Switch) {
		sw.Disconnect(connID)
	})
}

func (o *outbox) flush(sw Switch) {
	for _, effect := range o.effects {
		effect(sw)
	}
}
