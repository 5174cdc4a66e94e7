package mq_client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueEvent(t *testing.T) {
	recorder := &Recorder{}
	client := New(recorder)

	require.NoError(t, client.EnqueueEvent("private", "42", "order", map[string]interface{}{"id": 7}))
	require.NoError(t, client.Enqueue("carbonex.audit.trade_failed", map[string]string{"reason": "boom"}))

	assert.Equal(t, []string{"carbonex.events.private.42.order", "carbonex.audit.trade_failed"}, recorder.Subjects())

	var payload map[string]int
	require.NoError(t, json.Unmarshal(recorder.Messages[0].Data, &payload))
	assert.Equal(t, 7, payload["id"])
}
