package natsbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-chat-server/models"
	"github.com/example/room-chat-server/natsbus"
)

func TestEmbeddedRoundTrip(t *testing.T) {
	bus, err := natsbus.New("") // no external server configured
	require.NoError(t, err)
	defer bus.Close()

	ch := make(chan *models.Envelope, 1)
	_, err = bus.Subscribe(natsbus.RoomSubject("general"), func(env *models.Envelope) { ch <- env })
	require.NoError(t, err)
	require.NoError(t, bus.Flush())

	sent := &models.Envelope{
		Exclude: "conn-1",
		Event:   models.NewSystem("general", "alice joined"),
	}
	require.NoError(t, bus.Publish(natsbus.RoomSubject("general"), sent))

	select {
	case got := <-ch:
		assert.Equal(t, "conn-1", got.Exclude)
		assert.Equal(t, models.EventSystem, got.Event.Type)
		assert.Equal(t, "alice joined", got.Event.Message)
		assert.Equal(t, models.KindSystem, got.Event.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestSubjectNames(t *testing.T) {
	assert.Equal(t, "chat.room.general", natsbus.RoomSubject("general"))
	assert.Equal(t, "chat.client.abc", natsbus.ClientSubject("abc"))
	assert.Equal(t, "chat.global", natsbus.GlobalSubject())

	// Room names are client input; reserved subject characters are mapped away.
	assert.Equal(t, "chat.room.big_room_1", natsbus.RoomSubject("big room.1"))
	assert.Equal(t, natsbus.RoomSubject("a*b"), natsbus.RoomSubject("a>b"))
}
