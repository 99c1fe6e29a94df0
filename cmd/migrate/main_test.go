package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/migrations"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args    []string
		want    command
		wantErr bool
	}{
		{args: nil, want: command{name: "up"}},
		{args: []string{"up"}, want: command{name: "up"}},
		{args: []string{"down"}, want: command{name: "down"}},
		{args: []string{"version"}, want: command{name: "version"}},
		{args: []string{"force", "2"}, want: command{name: "force", version: 2}},
		{args: []string{"force"}, wantErr: true},
		{args: []string{"force", "two"}, wantErr: true},
		{args: []string{"sideways"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseArgs(tt.args)
		if tt.wantErr {
			assert.Error(t, err, tt.args)
			continue
		}
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, got)
	}
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run("", nil, logging.New("error"))
	assert.EqualError(t, err, "DATABASE_URL is required")
}

func TestMigrationsArePaired(t *testing.T) {
	for _, name := range []string{
		"000001_mutation_journal",
		"000002_access_audit_events",
	} {
		for _, dir := range []string{".up.sql", ".down.sql"} {
			body, err := migrations.FS.ReadFile(name + dir)
			require.NoError(t, err)
			assert.NotEmpty(t, body)
		}
	}
}
