// Package srp implements the SRP-6a authenticated key exchange used by the
// Ghost handshake. The group math follows RFC 5054 with SHA-256; it is
// implemented directly because peers negotiate per-identity primes and
// verifiers loaded from the peer store rather than a fixed named group.
package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidPublicValue = errors.New("peer public value is zero modulo the prime")
	ErrZeroScrambler      = errors.New("scrambling parameter is zero")
)

type Group struct {
	N *big.Int
	G *big.Int
}

// rfc5054Prime2048 is the 2048-bit group from RFC 5054 appendix A,
// generator 2. New identities register under this group.
const rfc5054Prime2048 = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
	"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
	"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
	"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

func DefaultGroup() *Group {
	n, _ := new(big.Int).SetString(rfc5054Prime2048, 16)
	return &Group{N: n, G: big.NewInt(2)}
}

func (g *Group) byteLen() int {
	return (g.N.BitLen() + 7) / 8
}

func pad(v *big.Int, size int) []byte {
	return v.FillBytes(make([]byte, size))
}

// multiplier is k = H(N || pad(g)).
func (g *Group) multiplier() *big.Int {
	h := sha256.New()
	h.Write(g.N.Bytes())
	h.Write(pad(g.G, g.byteLen()))
	return new(big.Int).SetBytes(h.Sum(nil))
}

// scrambler is u = H(pad(A) || pad(B)).
func (g *Group) scrambler(a, b *big.Int) (*big.Int, error) {
	h := sha256.New()
	h.Write(pad(a, g.byteLen()))
	h.Write(pad(b, g.byteLen()))
	u := new(big.Int).SetBytes(h.Sum(nil))
	if u.Sign() == 0 {
		return nil, ErrZeroScrambler
	}
	return u, nil
}

// privateKey is x = H(salt || H(identifier ":" secret)).
func privateKey(identifier, secret string, salt []byte) *big.Int {
	inner := sha256.Sum256([]byte(identifier + ":" + secret))
	h := sha256.New()
	h.Write(salt)
	h.Write(inner[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

// ComputeVerifier derives v = g^x for registration with a remote peer.
func ComputeVerifier(group *Group, identifier, secret string, salt []byte) *big.Int {
	x := privateKey(identifier, secret, salt)
	return new(big.Int).Exp(group.G, x, group.N)
}

func NewSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to draw salt: %w", err)
	}
	return salt, nil
}

func randomEphemeral(group *Group) (*big.Int, error) {
	for {
		e, err := rand.Int(rand.Reader, group.N)
		if err != nil {
			return nil, fmt.Errorf("failed to draw ephemeral: %w", err)
		}
		if e.Sign() > 0 {
			return e, nil
		}
	}
}

// masterKey hashes the shared secret S to the wide shared master key; the
// session key is its first 32 bytes.
func (g *Group) masterKey(s *big.Int) []byte {
	sum := sha512.Sum512(pad(s, g.byteLen()))
	return sum[:32]
}

// Server is the accepting side of one handshake, built around a stored
// verifier.
type Server struct {
	group    *Group
	verifier *big.Int
	b        *big.Int
	public   *big.Int
}

func NewServer(group *Group, verifier *big.Int) (*Server, error) {
	b, err := randomEphemeral(group)
	if err != nil {
		return nil, err
	}
	// B = (k*v + g^b) mod N
	kv := new(big.Int).Mul(group.multiplier(), verifier)
	gb := new(big.Int).Exp(group.G, b, group.N)
	public := kv.Add(kv, gb)
	public.Mod(public, group.N)

	return &Server{group: group, verifier: verifier, b: b, public: public}, nil
}

func (s *Server) PublicValue() *big.Int {
	return s.public
}

// SessionKey consumes the client public value A and derives the 32-byte
// session key. S = (A * v^u)^b mod N.
func (s *Server) SessionKey(clientPublic *big.Int) ([]byte, error) {
	if new(big.Int).Mod(clientPublic, s.group.N).Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}
	u, err := s.group.scrambler(clientPublic, s.public)
	if err != nil {
		return nil, err
	}
	vu := new(big.Int).Exp(s.verifier, u, s.group.N)
	base := vu.Mul(vu, clientPublic)
	base.Mod(base, s.group.N)
	shared := base.Exp(base, s.b, s.group.N)
	return s.group.masterKey(shared), nil
}

// Client is the dialing side of one handshake.
type Client struct {
	group  *Group
	a      *big.Int
	public *big.Int
}

func NewClient(group *Group) (*Client, error) {
	a, err := randomEphemeral(group)
	if err != nil {
		return nil, err
	}
	return &Client{
		group:  group,
		a:      a,
		public: new(big.Int).Exp(group.G, a, group.N),
	}, nil
}

func (c *Client) PublicValue() *big.Int {
	return c.public
}

// SessionKey consumes the server public value B and derives the 32-byte
// session key. S = (B - k*g^x)^(a + u*x) mod N.
func (c *Client) SessionKey(identifier, secret string, salt []byte, serverPublic *big.Int) ([]byte, error) {
	if new(big.Int).Mod(serverPublic, c.group.N).Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}
	u, err := c.group.scrambler(c.public, serverPublic)
	if err != nil {
		return nil, err
	}

	x := privateKey(identifier, secret, salt)
	gx := new(big.Int).Exp(c.group.G, x, c.group.N)
	kgx := gx.Mul(c.group.multiplier(), gx)

	base := new(big.Int).Sub(serverPublic, kgx)
	base.Mod(base, c.group.N)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)

	shared := base.Exp(base, exp, c.group.N)
	return c.group.masterKey(shared), nil
}
