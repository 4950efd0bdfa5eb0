// Package limits provides centralized size limits for meshchat.
// This ensures consistent validation across the ledger, group directory,
// delivery queue and transports.
package limits

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// MaxMessageBody is the limit for direct and group message bodies (1372 bytes).
	MaxMessageBody = 1372

	// MaxNameLength is the limit for display names and group names.
	MaxNameLength = 128

	// MaxNoiseMessage is the largest message a Noise transport frame can carry.
	MaxNoiseMessage = 65535

	// NoiseOverhead is the ChaCha20-Poly1305 authentication tag appended to every
	// encrypted frame.
	NoiseOverhead = 16

	// MaxFramePayload is the largest plaintext a single mesh frame can carry.
	MaxFramePayload = MaxNoiseMessage - NoiseOverhead

	// MaxProcessingBuffer is the absolute maximum for any inbound record.
	// This prevents memory exhaustion from hostile peers (1MB limit).
	MaxProcessingBuffer = 1024 * 1024
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrNameEmpty indicates an empty name was provided
	ErrNameEmpty = errors.New("empty name")

	// ErrNameTooLong indicates a name exceeds MaxNameLength
	ErrNameTooLong = errors.New("name too long")

	// ErrNameInvalid indicates a name that is not valid UTF-8
	ErrNameInvalid = errors.New("name is not valid UTF-8")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateBody validates a direct or group message body against MaxMessageBody.
func ValidateBody(body string) error {
	if len(body) == 0 {
		return ErrMessageEmpty
	}
	if len(body) > MaxMessageBody {
		return fmt.Errorf("%w: body size %d exceeds limit %d", ErrMessageTooLarge, len(body), MaxMessageBody)
	}
	return nil
}

// ValidateName validates a display name, account id or group name.
func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrNameTooLong, len(name), MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return ErrNameInvalid
	}
	return nil
}

// ValidateFramePayload validates a plaintext frame against MaxFramePayload.
func ValidateFramePayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrMessageEmpty
	}
	if len(payload) > MaxFramePayload {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrMessageTooLarge, len(payload), MaxFramePayload)
	}
	return nil
}

// ValidateProcessingBuffer validates data against the absolute maximum (MaxProcessingBuffer).
// This limit should be used for all untrusted input.
func ValidateProcessingBuffer(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > MaxProcessingBuffer {
		return fmt.Errorf("%w: buffer size %d exceeds limit %d", ErrMessageTooLarge, len(data), MaxProcessingBuffer)
	}
	return nil
}
