package app_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := app.NewBroadcasterWithClock(func() time.Time { return fixedNow })
	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()
	assert.Equal(t, 2, b.Subscribers())

	b.Publish(domain.Event{Type: domain.EventCohortOpened, CohortID: "c1"})

	for _, ch := range []<-chan domain.Event{first, second} {
		evt := <-ch
		assert.Equal(t, "c1", evt.CohortID)
		assert.Equal(t, fixedNow, evt.OccurredAt)
	}

	cancelFirst()
	cancelFirst()
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())
}

func TestBroadcasterDropsOldestForSlowSubscriber(t *testing.T) {
	b := app.NewBroadcaster()
	events, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		b.Publish(domain.Event{Type: domain.EventSubmissionRecorded, LessonID: fmt.Sprintf("l%d", i)})
	}

	require.Len(t, events, 16)
	evt := <-events
	assert.Equal(t, "l4", evt.LessonID)
}
