package prefixed_uuid

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := New("session")
	assert.False(t, id.IsZero())

	parsed, err := FromString(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.True(t, HasPrefix(id.String(), "session"))
	assert.False(t, HasPrefix(id.String(), "lead"))
}

func TestFromStringErrors(t *testing.T) {
	for _, in := range []string{"", "session", "-" + uuid.NewString(), "session-not-a-uuid"} {
		_, err := FromString(in)
		assert.Error(t, err, in)
	}
}

func TestJSON(t *testing.T) {
	type wrapper struct {
		ID PrefixedUUID `json:"id"`
	}
	in := wrapper{ID: New("turn")}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+in.ID.String()+`"}`, string(raw))

	var out wrapper
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"id":42}`), &out))
}
