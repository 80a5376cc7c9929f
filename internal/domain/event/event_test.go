package event

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range []Type{
		TypeRequestCreated, TypeApproverAssigned, TypeStepDecided,
		TypeRequestCompleted, TypeRequestRejected, TypeRequestDeleted, TypeStatusChanged,
	} {
		assert.True(t, typ.IsValid(), typ.String())
	}
	assert.False(t, Type("instance.created").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(TypeRequestCreated, 7, 11, map[string]interface{}{KeyTitle: "Laptop"})

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	_, err = uuid.Parse(e.CorrelationID)
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, e.CorrelationID)

	assert.Equal(t, int64(7), e.RequestID)
	assert.Equal(t, int64(11), e.InstanceID)
	assert.Equal(t, "Laptop", e.GetPayloadString(KeyTitle))
	assert.False(t, e.Timestamp.IsZero())
}

func TestNewEventWithCorrelation_NilPayload(t *testing.T) {
	e := NewEventWithCorrelation(TypeRequestDeleted, 1, 2, nil, "chain-1")

	assert.Equal(t, "chain-1", e.CorrelationID)
	require.NotNil(t, e.Payload)
	assert.Empty(t, e.GetPayloadString(KeyTitle))
}

func TestWithPayload_DoesNotMutateOriginal(t *testing.T) {
	e := NewEvent(TypeStepDecided, 1, 2, map[string]interface{}{KeyDecision: "approved"})
	e2 := e.WithPayload(KeyComment, "ok")

	assert.Equal(t, "ok", e2.GetPayloadString(KeyComment))
	assert.Empty(t, e.GetPayloadString(KeyComment))
	assert.Equal(t, e.ID, e2.ID)
}

func TestPayloadGetters(t *testing.T) {
	e := NewEvent(TypeApproverAssigned, 1, 2, map[string]interface{}{
		KeyStepIndex: 3,
		KeyAssignees: []string{"u1", "u2"},
	})

	assert.Equal(t, int64(3), e.GetPayloadInt(KeyStepIndex))
	assert.Equal(t, []string{"u1", "u2"}, e.GetPayloadStrings(KeyAssignees))
	assert.Zero(t, e.GetPayloadInt("missing"))
	assert.Nil(t, e.GetPayloadStrings("missing"))
}

func TestPayloadGetters_AfterJSONRoundTrip(t *testing.T) {
	e := NewEvent(TypeApproverAssigned, 1, 2, map[string]interface{}{
		KeyStepIndex: 2,
		KeyAssignees: []string{"u1"},
	})

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, int64(2), decoded.GetPayloadInt(KeyStepIndex))
	assert.Equal(t, []string{"u1"}, decoded.GetPayloadStrings(KeyAssignees))
	assert.Equal(t, TypeApproverAssigned, decoded.Type)
}
