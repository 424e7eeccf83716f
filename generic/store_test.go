package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/careerup/generic"
)

func TestFeed_DeliversPerOffice(t *testing.T) {
	var feed generic.Feed
	var got []generic.Change

	// GIVEN a subscriber on office-1
	cancel := feed.Subscribe("office-1", func(c generic.Change) { got = append(got, c) })

	// WHEN both offices publish
	feed.Publish(generic.Change{OfficeID: "office-1", Collection: generic.CollectionClients, Kind: generic.ChangeCreated, ID: "c-1"})
	feed.Publish(generic.Change{OfficeID: "office-2", Collection: generic.CollectionClients, Kind: generic.ChangeCreated, ID: "c-2"})

	// THEN only office-1's change arrives
	if assert.Len(t, got, 1) {
		assert.Equal(t, "c-1", got[0].ID)
	}
	assert.Equal(t, 1, feed.Subscribers("office-1"))

	// WHEN cancelled (twice)
	cancel()
	cancel()
	feed.Publish(generic.Change{OfficeID: "office-1", Kind: generic.ChangeDeleted, ID: "c-1"})

	// THEN nothing more arrives
	assert.Len(t, got, 1)
	assert.Equal(t, 0, feed.Subscribers("office-1"))
}

func TestFeed_SubscriberMayCancelItself(t *testing.T) {
	var feed generic.Feed
	calls := 0

	var cancel func()
	cancel = feed.Subscribe("office-1", func(generic.Change) {
		calls++
		cancel()
	})

	feed.Publish(generic.Change{OfficeID: "office-1"})
	feed.Publish(generic.Change{OfficeID: "office-1"})

	assert.Equal(t, 1, calls)
}
