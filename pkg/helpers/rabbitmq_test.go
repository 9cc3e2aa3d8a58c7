package helpers

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONPublishing(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("WIB", 7*3600))

	a, err := jsonPublishing(map[string]string{"to": "a@example.com"}, now)
	require.NoError(t, err)
	b, err := jsonPublishing(map[string]string{"to": "a@example.com"}, now)
	require.NoError(t, err)

	assert.Equal(t, "application/json", a.ContentType)
	assert.Equal(t, amqp.Persistent, a.DeliveryMode)
	assert.JSONEq(t, `{"to":"a@example.com"}`, string(a.Body))
	assert.Equal(t, time.UTC, a.Timestamp.Location())
	assert.NotEmpty(t, a.MessageId)
	assert.NotEqual(t, a.MessageId, b.MessageId)
}

func TestJSONPublishing_Unencodable(t *testing.T) {
	_, err := jsonPublishing(make(chan int), time.Now())
	assert.Error(t, err)
}
