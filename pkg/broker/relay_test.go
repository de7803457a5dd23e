package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		message  [][]byte
		envelope int
		body     int
	}{
		{
			name:     "request from REQ client",
			message:  [][]byte{[]byte("identity"), {}, []byte("command")},
			envelope: 1,
			body:     1,
		},
		{
			name:     "empty body",
			message:  [][]byte{[]byte("identity"), {}},
			envelope: 1,
			body:     0,
		},
		{
			name:     "no delimiter",
			message:  [][]byte{[]byte("identity"), []byte("command")},
			envelope: 2,
			body:     0,
		},
		{
			name:     "multi frame body",
			message:  [][]byte{[]byte("identity"), {}, []byte("command"), []byte("extra")},
			envelope: 1,
			body:     2,
		},
		{
			name:     "empty message",
			message:  nil,
			envelope: 0,
			body:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, body := splitEnvelope(tt.message)
			assert.Len(t, envelope, tt.envelope)
			assert.Len(t, body, tt.body)
		})
	}
}
