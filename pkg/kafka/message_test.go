package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

func TestIncomingMessage_ParseBatch(t *testing.T) {
	t.Run("parses a valid batch", func(t *testing.T) {
		msg := &IncomingMessage{
			Value: []byte(`{"run_id":"run-1","source":"osm","records":[{"id":123,"name":"Joe's Pizza"}]}`),
		}

		err := msg.ParseBatch()

		require.NoError(t, err)
		require.NotNil(t, msg.Batch)
		assert.Equal(t, "run-1", msg.Batch.RunID)
		assert.Equal(t, models.SourceOSM, msg.Batch.Source)
		assert.Len(t, msg.Batch.Records, 1)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"run_id":`)}

		err := msg.ParseBatch()

		assert.Error(t, err)
		assert.Nil(t, msg.Batch)
	})

	t.Run("rejects a batch without run_id", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"source":"fsq","records":[]}`)}

		err := msg.ParseBatch()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "run_id")
	})

	t.Run("rejects an unknown source", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"run_id":"run-1","source":"yelp","records":[]}`)}

		err := msg.ParseBatch()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "yelp")
	})
}

func TestIncomingMessage_HeaderFallbacks(t *testing.T) {
	msg := &IncomingMessage{
		Headers: map[string]string{"run_id": "run-9", "source": "fsq"},
	}

	assert.Equal(t, "run-9", msg.GetRunID())
	assert.Equal(t, models.SourceFSQ, msg.GetSource())
}

func TestIncomingMessage_ParsedBodyWinsOverHeaders(t *testing.T) {
	msg := &IncomingMessage{
		Value:   []byte(`{"run_id":"run-1","source":"osm","records":[]}`),
		Headers: map[string]string{"run_id": "run-9", "source": "fsq"},
	}

	require.NoError(t, msg.ParseBatch())
	assert.Equal(t, "run-1", msg.GetRunID())
	assert.Equal(t, models.SourceOSM, msg.GetSource())
}
