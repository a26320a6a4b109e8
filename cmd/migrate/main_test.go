package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    command
		wantErr string
	}{
		{name: "up", args: []string{"up"}, want: command{action: "up"}},
		{name: "status", args: []string{"status"}, want: command{action: "status"}},
		{name: "steps down", args: []string{"steps", "-2"}, want: command{action: "steps", arg: -2}},
		{name: "force", args: []string{"force", "3"}, want: command{action: "force", arg: 3}},
		{name: "empty", args: nil, wantErr: "no action specified"},
		{name: "unknown", args: []string{"sideways"}, wantErr: `unknown action "sideways"`},
		{name: "extra argument", args: []string{"up", "1"}, wantErr: "up takes no arguments"},
		{name: "steps missing count", args: []string{"steps"}, wantErr: "requires exactly one integer"},
		{name: "steps zero", args: []string{"steps", "0"}, wantErr: "steps must be non-zero"},
		{name: "steps not a number", args: []string{"steps", "two"}, wantErr: "is not an integer"},
		{name: "negative force", args: []string{"force", "-1"}, wantErr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
