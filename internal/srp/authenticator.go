package srp

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"

	log "github.com/sirupsen/logrus"

	"github.com/ghostnetwork/ghost-node/internal/config"
	"github.com/ghostnetwork/ghost-node/internal/ghost"
)

// Handshake message types. These frames travel in cleartext because the
// session key does not exist yet.
const (
	MsgHandshake          = "HANDSHAKE"
	MsgHandshakeChallenge = "HANDSHAKE_CHALLENGE"
	MsgHandshakeAuth      = "HANDSHAKE_AUTH"
	MsgInvalidAuth        = "INVALID_AUTH"
)

// Handshake parameter names. Byte-valued parameters travel base64-encoded.
const (
	paramIdentifier  = "IDENTIFIER"
	paramSalt        = "SALT"
	paramPrime       = "PRIME"
	paramGenerator   = "GENERATOR"
	paramVerifier    = "VERIFIER"
	paramPublicValue = "PUBLIC_VALUE"
	paramVersion     = "VERSION"
)

var ErrHandshakeRejected = errors.New("peer rejected the handshake")

// Credential is one peer's SRP material as held by the peer store.
type Credential struct {
	Identifier string
	Salt       []byte
	Prime      []byte
	Generator  []byte
	Verifier   []byte
}

// CredentialStore is the durable peer identity store.
type CredentialStore interface {
	LoadCredential(identifier string) (*Credential, error)
	SaveCredential(cred *Credential) error
}

// Authenticator runs the mutual authentication handshake on a fresh
// connection and yields the AES-256 session key.
type Authenticator struct {
	Store      CredentialStore
	Group      *Group
	Identifier string
	Secret     string
}

// HandshakeInbound performs the accepting side. A hello carrying full SRP
// material registers a new peer; a bare identifier is challenged against
// the stored record. On any inconsistency the peer is told INVALID_AUTH
// and an error is returned; the caller closes the connection.
func (a *Authenticator) HandshakeInbound(rw io.ReadWriter) ([]byte, error) {
	hello, err := readFrame(rw)
	if err != nil {
		return nil, err
	}
	if hello.Type != MsgHandshake {
		return nil, a.reject(rw, fmt.Errorf("unexpected frame %q before authentication", hello.Type))
	}
	identifier, ok := hello.Str(paramIdentifier)
	if !ok || identifier == "" {
		return nil, a.reject(rw, errors.New("handshake carries no identifier"))
	}

	if _, registering := hello.Str(paramVerifier); registering {
		return a.acceptRegistration(rw, identifier, hello)
	}
	return a.challengeKnownPeer(rw, identifier)
}

func (a *Authenticator) acceptRegistration(rw io.ReadWriter, identifier string, hello ghost.Frame) ([]byte, error) {
	salt, err1 := frameBytes(hello, paramSalt)
	prime, err2 := frameBytes(hello, paramPrime)
	generator, err3 := frameBytes(hello, paramGenerator)
	verifier, err4 := frameBytes(hello, paramVerifier)
	clientPublic, err5 := frameBytes(hello, paramPublicValue)
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, a.reject(rw, fmt.Errorf("incomplete registration: %w", err))
	}

	group := &Group{N: new(big.Int).SetBytes(prime), G: new(big.Int).SetBytes(generator)}
	if group.N.Sign() == 0 || group.G.Sign() == 0 {
		return nil, a.reject(rw, errors.New("registration carries a degenerate group"))
	}

	server, err := NewServer(group, new(big.Int).SetBytes(verifier))
	if err != nil {
		return nil, a.reject(rw, err)
	}
	reply := ghost.NewFrame(MsgHandshakeAuth,
		ghost.StrParam(paramPublicValue, encodeInt(server.PublicValue())))
	if err := writeFrame(rw, reply); err != nil {
		return nil, err
	}

	key, err := server.SessionKey(new(big.Int).SetBytes(clientPublic))
	if err != nil {
		return nil, a.reject(rw, err)
	}

	cred := &Credential{
		Identifier: identifier,
		Salt:       salt,
		Prime:      prime,
		Generator:  generator,
		Verifier:   verifier,
	}
	if err := a.Store.SaveCredential(cred); err != nil {
		return nil, fmt.Errorf("failed to persist peer credential: %w", err)
	}
	log.Debugf("Registered new peer %s via handshake", identifier)
	return key, nil
}

func (a *Authenticator) challengeKnownPeer(rw io.ReadWriter, identifier string) ([]byte, error) {
	cred, err := a.Store.LoadCredential(identifier)
	if err != nil || cred == nil {
		return nil, a.reject(rw, fmt.Errorf("unknown peer %q", identifier))
	}

	group := &Group{N: new(big.Int).SetBytes(cred.Prime), G: new(big.Int).SetBytes(cred.Generator)}
	server, err := NewServer(group, new(big.Int).SetBytes(cred.Verifier))
	if err != nil {
		return nil, a.reject(rw, err)
	}

	challenge := ghost.NewFrame(MsgHandshakeChallenge,
		ghost.StrParam(paramSalt, base64.StdEncoding.EncodeToString(cred.Salt)),
		ghost.StrParam(paramPrime, base64.StdEncoding.EncodeToString(cred.Prime)),
		ghost.StrParam(paramGenerator, base64.StdEncoding.EncodeToString(cred.Generator)),
		ghost.StrParam(paramPublicValue, encodeInt(server.PublicValue())))
	if err := writeFrame(rw, challenge); err != nil {
		return nil, err
	}

	answer, err := readFrame(rw)
	if err != nil {
		return nil, err
	}
	if answer.Type != MsgHandshakeAuth {
		return nil, a.reject(rw, fmt.Errorf("expected %s, got %q", MsgHandshakeAuth, answer.Type))
	}
	clientPublic, err := frameBytes(answer, paramPublicValue)
	if err != nil {
		return nil, a.reject(rw, err)
	}

	key, err := server.SessionKey(new(big.Int).SetBytes(clientPublic))
	if err != nil {
		return nil, a.reject(rw, err)
	}
	return key, nil
}

// HandshakeOutbound performs the dialing side. On first contact with a peer
// the node registers: it sends its own salt, group and verifier together
// with its public value. Afterwards it identifies itself and answers the
// server challenge.
func (a *Authenticator) HandshakeOutbound(rw io.ReadWriter, registered bool) ([]byte, error) {
	if registered {
		return a.login(rw)
	}
	return a.register(rw)
}

func (a *Authenticator) register(rw io.ReadWriter) ([]byte, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	verifier := ComputeVerifier(a.Group, a.Identifier, a.Secret, salt)
	client, err := NewClient(a.Group)
	if err != nil {
		return nil, err
	}

	hello := ghost.NewFrame(MsgHandshake,
		ghost.StrParam(paramIdentifier, a.Identifier),
		ghost.StrParam(paramSalt, base64.StdEncoding.EncodeToString(salt)),
		ghost.StrParam(paramPrime, encodeInt(a.Group.N)),
		ghost.StrParam(paramGenerator, encodeInt(a.Group.G)),
		ghost.StrParam(paramVerifier, encodeInt(verifier)),
		ghost.StrParam(paramPublicValue, encodeInt(client.PublicValue())),
		ghost.IntParam(paramVersion, config.AppConfig.GhostProtocolVersion))
	if err := writeFrame(rw, hello); err != nil {
		return nil, err
	}

	reply, err := readFrame(rw)
	if err != nil {
		return nil, err
	}
	if reply.Type != MsgHandshakeAuth {
		return nil, fmt.Errorf("%w: got %q", ErrHandshakeRejected, reply.Type)
	}
	serverPublic, err := frameBytes(reply, paramPublicValue)
	if err != nil {
		return nil, err
	}
	return client.SessionKey(a.Identifier, a.Secret, salt, new(big.Int).SetBytes(serverPublic))
}

func (a *Authenticator) login(rw io.ReadWriter) ([]byte, error) {
	hello := ghost.NewFrame(MsgHandshake,
		ghost.StrParam(paramIdentifier, a.Identifier),
		ghost.IntParam(paramVersion, config.AppConfig.GhostProtocolVersion))
	if err := writeFrame(rw, hello); err != nil {
		return nil, err
	}

	challenge, err := readFrame(rw)
	if err != nil {
		return nil, err
	}
	if challenge.Type != MsgHandshakeChallenge {
		return nil, fmt.Errorf("%w: got %q", ErrHandshakeRejected, challenge.Type)
	}
	salt, err1 := frameBytes(challenge, paramSalt)
	prime, err2 := frameBytes(challenge, paramPrime)
	generator, err3 := frameBytes(challenge, paramGenerator)
	serverPublic, err4 := frameBytes(challenge, paramPublicValue)
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, fmt.Errorf("malformed challenge: %w", err)
	}

	group := &Group{N: new(big.Int).SetBytes(prime), G: new(big.Int).SetBytes(generator)}
	client, err := NewClient(group)
	if err != nil {
		return nil, err
	}
	answer := ghost.NewFrame(MsgHandshakeAuth,
		ghost.StrParam(paramPublicValue, encodeInt(client.PublicValue())))
	if err := writeFrame(rw, answer); err != nil {
		return nil, err
	}

	return client.SessionKey(a.Identifier, a.Secret, salt, new(big.Int).SetBytes(serverPublic))
}

// reject tells the peer the handshake failed and surfaces why locally.
func (a *Authenticator) reject(w io.Writer, cause error) error {
	if err := writeFrame(w, ghost.NewFrame(MsgInvalidAuth)); err != nil {
		log.Debugf("Failed to send %s: %v", MsgInvalidAuth, err)
	}
	return fmt.Errorf("handshake failed: %w", cause)
}

func writeFrame(w io.Writer, f ghost.Frame) error {
	raw, err := ghost.Marshal(f)
	if err != nil {
		return err
	}
	return ghost.WriteRecord(w, raw)
}

func readFrame(r io.Reader) (ghost.Frame, error) {
	raw, err := ghost.ReadRecord(r)
	if err != nil {
		return ghost.Frame{}, err
	}
	return ghost.Unmarshal(raw)
}

func frameBytes(f ghost.Frame, name string) ([]byte, error) {
	value, ok := f.Str(name)
	if !ok {
		return nil, fmt.Errorf("missing parameter %s", name)
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("parameter %s is not base64: %w", name, err)
	}
	return raw, nil
}

func encodeInt(v *big.Int) string {
	return base64.StdEncoding.EncodeToString(v.Bytes())
}
