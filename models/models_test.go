package models_test

import (
	"marketplace-service/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefundStatus_CanTransitionTo(t *testing.T) {
	all := []models.RefundStatus{models.RefundPending, models.RefundApproved, models.RefundRejected, models.RefundCompleted}
	legal := map[models.RefundStatus][]models.RefundStatus{
		models.RefundPending:  {models.RefundApproved, models.RefundRejected},
		models.RefundApproved: {models.RefundCompleted},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestRefundStatus_Terminal(t *testing.T) {
	assert.False(t, models.RefundPending.IsTerminal())
	assert.False(t, models.RefundApproved.IsTerminal())
	assert.True(t, models.RefundRejected.IsTerminal())
	assert.True(t, models.RefundCompleted.IsTerminal())
	assert.False(t, models.RefundStatus("cancelled").Valid())
}

func TestOriginType_TotalPolicy(t *testing.T) {
	assert.True(t, models.OriginSupport.CountsTowardTotal())
	assert.True(t, models.OriginRefund.CountsTowardTotal())
	assert.False(t, models.OriginComment.CountsTowardTotal())

	_, err := models.ParseOriginType("order")
	assert.Error(t, err)
	o, err := models.ParseOriginType("comment")
	assert.NoError(t, err)
	assert.Equal(t, models.OriginComment, o)
}

func TestOriginTypeForEvent(t *testing.T) {
	o, ok := models.OriginTypeForEvent(models.EventCommentPosted)
	assert.True(t, ok)
	assert.Equal(t, models.OriginComment, o)

	_, ok = models.OriginTypeForEvent("user_registered")
	assert.False(t, ok)
}

func TestStringList_RoundTripsThroughDriver(t *testing.T) {
	v, err := models.StringList{"a.png", "b.png"}.Value()
	assert.NoError(t, err)
	assert.Equal(t, `["a.png","b.png"]`, v)

	var l models.StringList
	assert.NoError(t, l.Scan([]byte(`["x"]`)))
	assert.Equal(t, models.StringList{"x"}, l)

	assert.NoError(t, l.Scan(nil))
	assert.Nil(t, l)

	empty, err := models.StringList(nil).Value()
	assert.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestNotificationPatch_WatchingOnly(t *testing.T) {
	yes := true
	assert.True(t, models.NotificationPatch{IsWatching: &yes}.WatchingOnly())
	assert.False(t, models.NotificationPatch{IsWatching: &yes, IsRead: &yes}.WatchingOnly())
	assert.True(t, models.NotificationPatch{}.Empty())
}
