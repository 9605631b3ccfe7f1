package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare id", input: "standup", want: "standup"},
		{name: "https room url", input: "https://meshdrop.qzz.io/r/standup", want: "standup"},
		{name: "http room url", input: "http://localhost:3000/r/abc-123", want: "abc-123"},
		{name: "trailing slash", input: "https://meshdrop.qzz.io/r/standup/", want: "standup"},
		{name: "empty input", input: "", wantErr: true},
		{name: "url without room", input: "https://meshdrop.qzz.io/r/", wantErr: true},
		{name: "bare domain", input: "https://meshdrop.qzz.io/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRoomInput(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
