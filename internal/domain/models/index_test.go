package models_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genlayerlabs/glvault/internal/domain/models"
)

// The two index types share the backend with any other implementation of the
// same key layout, so their serialized form is a contract: a bare JSON array,
// never an object wrapper.

func TestAliasIndexPersistsAsBareArray(t *testing.T) {
	idx := &models.AliasIndex{}
	idx.Add("weather-api")
	idx.Add("news-api")

	raw, err := json.Marshal(idx)
	require.NoError(t, err)
	assert.JSONEq(t, `["weather-api","news-api"]`, string(raw))

	var decoded models.AliasIndex
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Contains("weather-api"))
	assert.True(t, decoded.Contains("news-api"))
}

func TestEmptyAliasIndexMarshalsToEmptyArray(t *testing.T) {
	raw, err := json.Marshal(&models.AliasIndex{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestAliasIndexAddAndRemove(t *testing.T) {
	idx := &models.AliasIndex{}

	assert.True(t, idx.Add("weather-api"))
	assert.False(t, idx.Add("weather-api"))

	assert.True(t, idx.Remove("weather-api"))
	assert.False(t, idx.Remove("weather-api"))
	assert.False(t, idx.Contains("weather-api"))
}

func TestAuditIndexPersistsAsBareArray(t *testing.T) {
	idx := &models.AuditIndex{}
	idx.Append("id-a", 1000)
	idx.Append("id-b", 2000)

	raw, err := json.Marshal(idx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"id-a","ts":1000},{"id":"id-b","ts":2000}]`, string(raw))

	var decoded models.AuditIndex
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, "id-a", decoded.Entries[0].ID)
}

func TestAuditIndexTrimsOldestPastCap(t *testing.T) {
	idx := &models.AuditIndex{}
	for i := 0; i < models.MaxAuditIndexEntries+5; i++ {
		idx.Append(fmt.Sprintf("id-%d", i), int64(i))
	}

	require.Len(t, idx.Entries, models.MaxAuditIndexEntries)
	assert.Equal(t, "id-5", idx.Entries[0].ID)
	assert.Equal(t, fmt.Sprintf("id-%d", models.MaxAuditIndexEntries+4), idx.Entries[len(idx.Entries)-1].ID)
}
