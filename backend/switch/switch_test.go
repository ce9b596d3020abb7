package _switch

import (
	"testing"

	"github.com/adwski/interest-chat/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitch(t *testing.T, endpoints ...string) (*Switch, map[string]model.Wire) {
	t.Helper()
	logger := zerolog.Nop()
	sw := NewSwitch(&logger)
	wires := make(map[string]model.Wire, len(endpoints))
	for _, e := range endpoints {
		w := model.NewWire(4)
		require.NoError(t, sw.Connect(e, w))
		wires[e] = w
	}
	return sw, wires
}

func TestSwitch_ConnectTwice(t *testing.T) {
	sw, wires := newTestSwitch(t, "c1")
	assert.ErrorIs(t, sw.Connect("c1", wires["c1"]), ErrAlreadyConnected)
}

func TestSwitch_Send(t *testing.T) {
	sw, wires := newTestSwitch(t, "c1")

	require.True(t, sw.Send("c1", model.Outbound{Event: model.EventConnected}))
	assert.Equal(t, model.EventConnected, (<-wires["c1"].TX).Event)

	assert.False(t, sw.Send("unknown", model.Outbound{Event: model.EventConnected}))
}

func TestSwitch_SendDropsWhenOutboxFull(t *testing.T) {
	sw, wires := newTestSwitch(t, "c1")
	for i := 0; i < cap(wires["c1"].TX); i++ {
		require.True(t, sw.Send("c1", model.Outbound{Event: model.EventTyping}))
	}
	assert.False(t, sw.Send("c1", model.Outbound{Event: model.EventTyping}))
}

func TestSwitch_BroadcastExcludesSender(t *testing.T) {
	sw, wires := newTestSwitch(t, "c1", "c2", "c3")
	sw.JoinRoom("c1", "r1")
	sw.JoinRoom("c2", "r1")

	n := sw.BroadcastToRoom("r1", model.Outbound{Event: model.EventNewMessage}, "c1")
	assert.Equal(t, 1, n)
	assert.Len(t, wires["c1"].TX, 0)
	assert.Len(t, wires["c2"].TX, 1)
	assert.Len(t, wires["c3"].TX, 0)
}

func TestSwitch_LeaveAndDisconnectShrinkRoom(t *testing.T) {
	sw, _ := newTestSwitch(t, "c1", "c2")
	sw.JoinRoom("c1", "r1")
	sw.JoinRoom("c2", "r1")

	sw.LeaveRoom("c2", "r1")
	assert.Equal(t, 0, sw.BroadcastToRoom("r1", model.Outbound{Event: model.EventTyping}, "c1"))

	sw.Disconnect("c1")
	assert.Empty(t, sw.groups)
	assert.NotContains(t, sw.endpoints, "c1")

	sw.LeaveRoom("c1", "r1")
}
