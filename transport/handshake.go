package transport

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

var (
	// ErrHandshakeFailed indicates the Noise handshake on a link did not complete.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrInvalidStaticKey indicates a static key of the wrong size or a low-order point.
	ErrInvalidStaticKey = errors.New("invalid static key")
)

// HandshakeTimeout is the max time for a link handshake to complete (10 seconds)
const HandshakeTimeout = 10 * time.Second

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// handshakeRole defines whether we dialed or accepted the link.
type handshakeRole uint8

const (
	initiator handshakeRole = iota
	responder
)

// linkCiphers holds the cipher states produced by a completed handshake.
type linkCiphers struct {
	send       *noise.CipherState
	recv       *noise.CipherState
	peerStatic []byte
}

// generateStaticKeypair creates the per-process Curve25519 link key.
func generateStaticKeypair() (noise.DHKey, error) {
	private := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, private); err != nil {
		return noise.DHKey{}, fmt.Errorf("failed to generate static key: %w", err)
	}
	return staticKeypairFromPrivate(private)
}

// staticKeypairFromPrivate derives the public half of a Curve25519 key.
func staticKeypairFromPrivate(private []byte) (noise.DHKey, error) {
	if len(private) != curve25519.ScalarSize {
		return noise.DHKey{}, fmt.Errorf("%w: private key must be %d bytes, got %d",
			ErrInvalidStaticKey, curve25519.ScalarSize, len(private))
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return noise.DHKey{}, fmt.Errorf("%w: %v", ErrInvalidStaticKey, err)
	}
	return noise.DHKey{Private: append([]byte(nil), private...), Public: public}, nil
}

// validatePeerStatic checks the remote static key before it becomes an identity.
func validatePeerStatic(public []byte) error {
	if len(public) != curve25519.PointSize {
		return fmt.Errorf("%w: peer key must be %d bytes, got %d",
			ErrInvalidStaticKey, curve25519.PointSize, len(public))
	}
	allZero := true
	for _, b := range public {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Errorf("%w: all-zero peer key", ErrInvalidStaticKey)
	}
	return nil
}

// peerIDFromStatic renders a static public key as a network identity.
func peerIDFromStatic(public []byte) string {
	return hex.EncodeToString(public)
}

// performHandshake runs the Noise XX pattern over conn:
//
//	-> e
//	<- e, ee, s, es
//	-> s, se
//
// Both static keys are transmitted, so neither side needs to know the other
// in advance. The initiator encrypts with the first cipher state returned by
// the final message and the responder with the second.
func performHandshake(conn net.Conn, static noise.DHKey, role handshakeRole) (*linkCiphers, error) {
	if err := conn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return nil, err
	}
	defer conn.SetDeadline(time.Time{})

	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     role == initiator,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	var cs1, cs2 *noise.CipherState
	if role == initiator {
		cs1, cs2, err = runInitiator(conn, state)
	} else {
		cs1, cs2, err = runResponder(conn, state)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	peerStatic := state.PeerStatic()
	if err := validatePeerStatic(peerStatic); err != nil {
		return nil, err
	}

	ciphers := &linkCiphers{peerStatic: append([]byte(nil), peerStatic...)}
	if role == initiator {
		ciphers.send, ciphers.recv = cs1, cs2
	} else {
		ciphers.send, ciphers.recv = cs2, cs1
	}
	return ciphers, nil
}

func runInitiator(conn net.Conn, state *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg, _, _, err := state.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("initiator write failed: %w", err)
	}
	if err := writeFrame(conn, msg); err != nil {
		return nil, nil, err
	}

	reply, err := readFrame(conn)
	if err != nil {
		return nil, nil, err
	}
	if _, _, _, err := state.ReadMessage(nil, reply); err != nil {
		return nil, nil, fmt.Errorf("initiator read failed: %w", err)
	}

	final, cs1, cs2, err := state.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("initiator final write failed: %w", err)
	}
	if err := writeFrame(conn, final); err != nil {
		return nil, nil, err
	}
	return cs1, cs2, nil
}

func runResponder(conn net.Conn, state *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	first, err := readFrame(conn)
	if err != nil {
		return nil, nil, err
	}
	if _, _, _, err := state.ReadMessage(nil, first); err != nil {
		return nil, nil, fmt.Errorf("responder read failed: %w", err)
	}

	reply, _, _, err := state.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("responder write failed: %w", err)
	}
	if err := writeFrame(conn, reply); err != nil {
		return nil, nil, err
	}

	final, err := readFrame(conn)
	if err != nil {
		return nil, nil, err
	}
	_, cs1, cs2, err := state.ReadMessage(nil, final)
	if err != nil {
		return nil, nil, fmt.Errorf("responder final read failed: %w", err)
	}
	return cs1, cs2, nil
}
