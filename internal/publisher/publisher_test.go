package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpath/wellpath/internal/logger"
	"github.com/wellpath/wellpath/internal/types"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	p := NewPublisher(logger.GetLogger())
	defer p.Close()

	ctx := types.SetRequestID(context.Background(), "req_test_1")
	messages, err := p.Subscribe(ctx, TopicSubscriptionCreated)
	require.NoError(t, err)

	event := SubscriptionEvent{
		SubscriptionID: "subs_test_1",
		PatientID:      "pat_test_1",
		PracticeID:     "practice_test",
	}
	require.NoError(t, p.Publish(ctx, TopicSubscriptionCreated, event))

	select {
	case msg := <-messages:
		var got SubscriptionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, event, got)
		assert.Equal(t, "req_test_1", msg.Metadata.Get("request_id"))
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	p := NewPublisher(logger.GetLogger())
	defer p.Close()

	err := p.Publish(context.Background(), TopicPaymentIssueOpened, make(chan int))
	assert.Error(t, err)
}
