package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/opd-ai/meshchat/limits"
)

// frameHeaderSize is the 4-byte big-endian length prefix in front of every frame.
const frameHeaderSize = 4

// maxTopicLength bounds the topic name carried in an envelope.
const maxTopicLength = 255

// writeFrame writes a length-prefixed frame.
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > limits.MaxNoiseMessage {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", limits.ErrMessageTooLarge, len(data), limits.MaxNoiseMessage)
	}

	buf := make([]byte, frameHeaderSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[frameHeaderSize:], data)

	_, err := w.Write(buf)
	return err
}

// readFrame reads one length-prefixed frame, tolerating partial reads.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header)
	if length == 0 || length > limits.MaxNoiseMessage {
		return nil, fmt.Errorf("%w: frame length %d", limits.ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// encodeEnvelope prefixes a record with its topic: one length byte, then the
// topic, then the record.
func encodeEnvelope(topic string, data []byte) ([]byte, error) {
	if topic == "" || len(topic) > maxTopicLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	envelope := make([]byte, 0, 1+len(topic)+len(data))
	envelope = append(envelope, byte(len(topic)))
	envelope = append(envelope, topic...)
	envelope = append(envelope, data...)

	if err := limits.ValidateFramePayload(envelope); err != nil {
		return nil, err
	}
	return envelope, nil
}

// decodeEnvelope splits an envelope into its topic and record.
func decodeEnvelope(envelope []byte) (string, []byte, error) {
	if len(envelope) < 2 {
		return "", nil, fmt.Errorf("%w: envelope too short", ErrInvalidTopic)
	}
	n := int(envelope[0])
	if n == 0 || len(envelope) < 1+n {
		return "", nil, fmt.Errorf("%w: bad topic length %d", ErrInvalidTopic, n)
	}
	return string(envelope[1 : 1+n]), envelope[1+n:], nil
}
