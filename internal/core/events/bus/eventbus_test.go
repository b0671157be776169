package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got []any
	_, err := b.Subscribe("test.event", func(e Event) error {
		got = append(got, e.Data())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("test.event", "tester", 123)))
	require.NoError(t, b.Publish(NewEvent("other.event", "tester", 456)))
	assert.Equal(t, []any{123}, got)
}

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := range 5 {
		_, err := b.Subscribe("ev", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, b.Publish(NewEvent("ev", "src", nil)))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	first, second := errors.New("first"), errors.New("second")
	_, _ = b.Subscribe("ev", func(Event) error { return first })
	_, _ = b.Subscribe("ev", func(Event) error { return nil })
	_, _ = b.Subscribe("ev", func(Event) error { return second })

	err := b.Publish(NewEvent("ev", "src", nil))
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	count1, count2 := 0, 0
	_, _ = b.SubscribeTopic("t1", "ev", func(Event) error { count1++; return nil })
	_, _ = b.SubscribeTopic("t2", "ev", func(Event) error { count2++; return nil })

	require.NoError(t, b.PublishToTopic("t1", NewEvent("ev", "src", nil)))
	assert.Equal(t, 1, count1)
	assert.Equal(t, 0, count2)
	assert.Equal(t, []string{"t1", "t2"}, b.Topics())
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	sub, err := b.SubscribeTopic("t", "ev", func(Event) error { count++; return nil })
	require.NoError(t, err)
	assert.True(t, sub.IsActive())

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	assert.False(t, sub.IsActive())

	require.NoError(t, b.PublishToTopic("t", NewEvent("ev", "src", nil)))
	assert.Zero(t, count)
	assert.Empty(t, b.Topics())
	assert.NoError(t, b.Unsubscribe(nil))
}

func TestCancelDuringDelivery(t *testing.T) {
	b := New()
	var second Subscription
	calls := 0
	_, _ = b.Subscribe("ev", func(Event) error { return second.Cancel() })
	second, _ = b.Subscribe("ev", func(Event) error { calls++; return nil })

	require.NoError(t, b.Publish(NewEvent("ev", "src", nil)))
	assert.Zero(t, calls)
}

func TestPublishWithFilters(t *testing.T) {
	b := New()
	count := 0
	_, _ = b.Subscribe("ev", func(Event) error { count++; return nil })

	reject := func(Event) bool { return false }
	accept := func(Event) bool { return true }
	require.NoError(t, b.PublishWithFilters(NewEvent("ev", "src", nil), accept, reject))
	require.NoError(t, b.PublishWithFilters(NewEvent("ev", "src", nil), accept))
	assert.Equal(t, 1, count)
}

func TestNilHandlerRejected(t *testing.T) {
	_, err := New().Subscribe("ev", nil)
	assert.Error(t, err)
}
