package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesAreOrderedAndReversible(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	require.Equal(t, []string{
		"00001_interventions.sql",
		"00002_intervention_tracking_fields.sql",
		"00003_case_report_jobs.sql",
	}, names)

	for _, name := range names {
		body, err := migrationFS.ReadFile(migrationsDir + "/" + name)
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.Contains(text, "-- +goose Up"), name)
		assert.True(t, strings.Contains(text, "-- +goose Down"), name)
	}
}
