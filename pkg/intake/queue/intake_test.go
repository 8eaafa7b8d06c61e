package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRunRequest(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantErr bool
		wantIDs []string
		auto    bool
	}{
		{
			name:    "valid request",
			message: `{"transcript_ids":["tr-1","tr-2"],"auto_approve":true}`,
			wantIDs: []string{"tr-1", "tr-2"},
			auto:    true,
		},
		{
			name:    "auto approve defaults to false",
			message: `{"transcript_ids":["tr-1"]}`,
			wantIDs: []string{"tr-1"},
		},
		{
			name:    "empty transcript list",
			message: `{"transcript_ids":[],"auto_approve":true}`,
			wantErr: true,
		},
		{
			name:    "missing transcript ids",
			message: `{"auto_approve":true}`,
			wantErr: true,
		},
		{
			name:    "not json",
			message: "start everything please",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, err := DecodeRunRequest(tt.message)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, request.TranscriptIDs)
			assert.Equal(t, tt.auto, request.AutoApprove)
		})
	}
}
