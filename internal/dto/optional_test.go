package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateCommandTracksKeyPresence(t *testing.T) {
	var cmd UpdateInterventionCommand
	require.NoError(t, json.Unmarshal([]byte(`{"priority":"4","outcomeEvaluation":null,"responsibleId":12}`), &cmd))

	assert.True(t, cmd.Priority.Present())
	assert.EqualValues(t, 4, cmd.Priority.Value)

	assert.True(t, cmd.OutcomeEvaluation.Set)
	assert.True(t, cmd.OutcomeEvaluation.Null)
	assert.False(t, cmd.OutcomeEvaluation.Present())

	assert.EqualValues(t, 12, cmd.ResponsibleID.Value)
	assert.False(t, cmd.Description.Set)
	assert.False(t, cmd.InformerID.Set)
}

func TestFlexIntRejectsNonNumeric(t *testing.T) {
	var v FlexInt
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &v))
	require.NoError(t, json.Unmarshal([]byte(`3.9`), &v))
	assert.EqualValues(t, 3, v)
	require.NoError(t, json.Unmarshal([]byte(`" 7 "`), &v))
	assert.EqualValues(t, 7, v)
}

func TestFlexBoolCoercion(t *testing.T) {
	cases := map[string]bool{`true`: true, `"false"`: false, `1`: true, `0`: false, `"yes"`: true, `""`: false}
	for raw, want := range cases {
		var b FlexBool
		require.NoError(t, json.Unmarshal([]byte(raw), &b), raw)
		assert.Equal(t, want, b.Bool(), raw)
	}
	var b FlexBool
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &b))
}

func TestAddCommentRequestAuthorFallback(t *testing.T) {
	var req AddCommentRequest
	require.NoError(t, json.Unmarshal([]byte(`{"content":"called parents"}`), &req))
	assert.EqualValues(t, 9, req.ResolvedAuthorID(9))

	require.NoError(t, json.Unmarshal([]byte(`{"userId":"5","content":"x"}`), &req))
	assert.EqualValues(t, 5, req.ResolvedAuthorID(9))
}
