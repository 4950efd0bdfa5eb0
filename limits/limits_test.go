package limits

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFramePayloadCalculation verifies that MaxFramePayload leaves room for the
// Noise authentication tag.
func TestFramePayloadCalculation(t *testing.T) {
	if MaxFramePayload+NoiseOverhead != MaxNoiseMessage {
		t.Errorf("MaxFramePayload = %d, want %d", MaxFramePayload, MaxNoiseMessage-NoiseOverhead)
	}
}

func TestValidateBody(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"Empty body", "", ErrMessageEmpty},
		{"Short body", "hello", nil},
		{"Max body", strings.Repeat("a", MaxMessageBody), nil},
		{"Body too long", strings.Repeat("a", MaxMessageBody+1), ErrMessageTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBody(tc.body)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.wantErr), "expected %v, got %v", tc.wantErr, err)
		})
	}
}

func TestValidateName(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"Empty name", "", ErrNameEmpty},
		{"Normal name", "alice", nil},
		{"Unicode name", "友達", nil},
		{"Max length name", strings.Repeat("n", MaxNameLength), nil},
		{"Name too long", strings.Repeat("n", MaxNameLength+1), ErrNameTooLong},
		{"Invalid UTF-8", string([]byte{0xff, 0xfe}), ErrNameInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.input)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidateMessageSize(t *testing.T) {
	assert.ErrorIs(t, ValidateMessageSize(nil, 10), ErrMessageEmpty)
	assert.NoError(t, ValidateMessageSize(make([]byte, 10), 10))

	err := ValidateMessageSize(make([]byte, 11), 10)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Contains(t, err.Error(), "size 11 exceeds limit 10")
}

func TestValidateFramePayload(t *testing.T) {
	assert.ErrorIs(t, ValidateFramePayload(nil), ErrMessageEmpty)
	assert.NoError(t, ValidateFramePayload(make([]byte, MaxFramePayload)))
	assert.ErrorIs(t, ValidateFramePayload(make([]byte, MaxFramePayload+1)), ErrMessageTooLarge)
}

func TestValidateProcessingBuffer(t *testing.T) {
	assert.ErrorIs(t, ValidateProcessingBuffer([]byte{}), ErrMessageEmpty)
	assert.NoError(t, ValidateProcessingBuffer([]byte{1}))
	assert.ErrorIs(t, ValidateProcessingBuffer(make([]byte, MaxProcessingBuffer+1)), ErrMessageTooLarge)
}
