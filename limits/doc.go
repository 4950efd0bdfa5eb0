// Package limits provides centralized size constants and validation functions
// for meshchat.
//
// # Size Hierarchy
//
//   - MaxMessageBody (1372 bytes): limit for user-visible message bodies,
//     direct and group alike.
//
//   - MaxNameLength (128 bytes): limit for display names, account ids and
//     group names.
//
//   - MaxFramePayload (65519 bytes): the largest plaintext one Noise-encrypted
//     mesh frame can carry (65535 minus the 16 byte Poly1305 tag).
//
//   - MaxProcessingBuffer (1MB): the absolute maximum for any inbound record.
//
// # Validation Functions
//
//	if err := limits.ValidateBody(body); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
//	if err := limits.ValidateName(name); err != nil {
//	    // ErrNameEmpty, ErrNameTooLong or ErrNameInvalid
//	}
//
// All errors wrap the package sentinels so callers can use errors.Is.
package limits
