package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

func TestCreateCommandAcceptsLegacyKeys(t *testing.T) {
	body := `{"student":5,"informer":"10","responsible":11,"interventionScope":"Family","priority":2,"dateReported":"01-04-2024","description":"x"}`

	var cmd CreateInterventionCommand
	require.NoError(t, json.Unmarshal([]byte(body), &cmd))

	require.NotNil(t, cmd.StudentID)
	require.NotNil(t, cmd.InformerID)
	require.NotNil(t, cmd.ResponsibleID)
	assert.EqualValues(t, 5, cmd.StudentID.Int64())
	assert.EqualValues(t, 10, cmd.InformerID.Int64())
	assert.EqualValues(t, 11, cmd.ResponsibleID.Int64())
	assert.Equal(t, models.InterventionScopeFamily, cmd.Scope)
	assert.Equal(t, "01-04-2024", cmd.DateReported.String())
}

func TestCreateCommandCanonicalKeyWins(t *testing.T) {
	var cmd CreateInterventionCommand
	require.NoError(t, json.Unmarshal([]byte(`{"studentId":7,"student":5}`), &cmd))

	require.NotNil(t, cmd.StudentID)
	assert.EqualValues(t, 7, cmd.StudentID.Int64())
}

func TestUpdateCommandLegacyKeysKeepPresence(t *testing.T) {
	var cmd UpdateInterventionCommand
	require.NoError(t, json.Unmarshal([]byte(`{"responsible":null,"interventionScope":"Group"}`), &cmd))

	assert.True(t, cmd.ResponsibleID.Set)
	assert.True(t, cmd.ResponsibleID.Null)
	assert.True(t, cmd.Scope.Present())
	assert.Equal(t, models.InterventionScopeGroup, cmd.Scope.Value)
	assert.False(t, cmd.StudentID.Set)
	assert.False(t, cmd.InformerID.Set)

	assert.Error(t, json.Unmarshal([]byte(`{"student":"abc"}`), &cmd))
}
