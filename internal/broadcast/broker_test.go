package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, data []byte) Event {
	t.Helper()
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestPublishReachesEveryMemberInOrder(t *testing.T) {
	b := NewBroker(8)
	alice := b.Subscribe("room-1", "alice")
	bob := b.Subscribe("room-1", "bob")
	other := b.Subscribe("room-2", "carol")

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "room-1", NewEvent(SpinStarted, "room-1", map[string]string{"spinId": "s1"})))
	require.NoError(t, b.Publish(ctx, "room-1", NewEvent(SpinResult, "room-1", map[string]string{"spinId": "s1"})))

	for _, sub := range []*Subscription{alice, bob} {
		assert.Equal(t, SpinStarted, decode(t, <-sub.C).Type)
		assert.Equal(t, SpinResult, decode(t, <-sub.C).Type)
	}
	assert.Empty(t, other.C)
}

func TestPublishToEmptyRoomIsNoop(t *testing.T) {
	b := NewBroker(1)
	require.NoError(t, b.Publish(context.Background(), "nobody", NewEvent(SpinResult, "nobody", nil)))
	assert.Equal(t, 0, b.Deliver("nobody", []byte("{}")))
}

func TestSlowMemberIsEvicted(t *testing.T) {
	b := NewBroker(2)
	slow := b.Subscribe("room-1", "slow")

	for i := range 3 {
		b.Deliver("room-1", []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	assert.Equal(t, 0, b.Members("room-1"))
	var got []string
	for data := range slow.C {
		got = append(got, string(data))
	}
	assert.Equal(t, []string{`{"n":0}`, `{"n":1}`}, got)

	// Unsubscribing an evicted member must not panic.
	b.Unsubscribe(slow)
}

func TestResubscribeReplacesOldConnection(t *testing.T) {
	b := NewBroker(4)
	first := b.Subscribe("room-1", "alice")
	second := b.Subscribe("room-1", "alice")

	_, open := <-first.C
	assert.False(t, open)
	assert.Equal(t, 1, b.Members("room-1"))

	b.Unsubscribe(first)
	assert.Equal(t, 1, b.Members("room-1"))

	b.Unsubscribe(second)
	assert.Equal(t, 0, b.Members("room-1"))
}

func TestCloseEndsAllSubscriptions(t *testing.T) {
	b := NewBroker(4)
	a := b.Subscribe("r1", "a")
	c := b.Subscribe("r2", "c")
	b.Close()

	_, okA := <-a.C
	_, okC := <-c.C
	assert.False(t, okA)
	assert.False(t, okC)
}

func TestRoomFromChannel(t *testing.T) {
	id, ok := roomFromChannel(DefaultChannelPrefix, DefaultChannelPrefix+"abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = roomFromChannel(DefaultChannelPrefix, "other:abc")
	assert.False(t, ok)
	_, ok = roomFromChannel(DefaultChannelPrefix, DefaultChannelPrefix)
	assert.False(t, ok)
}
