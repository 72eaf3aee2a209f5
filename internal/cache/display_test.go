package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisplayCacheLifecycle(t *testing.T) {
	c := NewDisplayCache()

	_, ok := c.Get("evt_ab12")
	require.False(t, ok)

	entry := DisplayEntry{
		Title:     "Raid",
		StartTime: time.Now().Add(time.Hour),
		CreatorID: "creator-1",
		ChannelID: "channel-1",
	}
	c.Put("evt_ab12", entry)

	got, ok := c.Get("evt_ab12")
	require.True(t, ok)
	require.Equal(t, "Raid", got.Title)

	c.SetMessageID("evt_ab12", "msg-1")
	got, _ = c.Get("evt_ab12")
	require.Equal(t, "msg-1", got.MessageID)

	c.Delete("evt_ab12")
	_, ok = c.Get("evt_ab12")
	require.False(t, ok)
}

func TestDisplayCacheSetMessageIDMissingEntry(t *testing.T) {
	c := NewDisplayCache()

	// Setting a pointer on an absent entry must not create a ghost.
	c.SetMessageID("evt_gone", "msg-1")
	_, ok := c.Get("evt_gone")
	require.False(t, ok)
}

func TestDisplayCacheConcurrentAccess(t *testing.T) {
	c := NewDisplayCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("evt_ab12", DisplayEntry{Title: "Raid"})
			c.Get("evt_ab12")
			c.SetMessageID("evt_ab12", "msg-1")
		}()
	}
	wg.Wait()

	got, ok := c.Get("evt_ab12")
	require.True(t, ok)
	require.Equal(t, "Raid", got.Title)
}
