package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/luca-patrignani/mental-coup/domain/coup"
	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/proof/dleq"
	"go.dedis.ch/kyber/v4/suites"
)

var suite suites.Suite = suites.MustFind("Ed25519")

var (
	ErrUnknownHandle = errors.New("unknown handle")
	ErrNotOwner      = errors.New("handle belongs to another player")
)

// ciphertext is an ElGamal pair (K, C) = (kG, M + kX) under the owner's key X.
type ciphertext struct {
	owner string
	k     kyber.Point
	c     kyber.Point
}

// Store seals roles as curve points encrypted under a per-player key.
// Each role is a fixed point derived from its name, so opening a handle
// means decrypting it and matching the result against the five role points.
type Store struct {
	mu     sync.RWMutex
	keys   map[string]kyber.Scalar
	pubs   map[string]kyber.Point
	sealed map[coup.Handle]ciphertext
	roles  map[coup.Role]kyber.Point
}

// New creates an empty store.
func New() *Store {
	s := &Store{
		keys:   make(map[string]kyber.Scalar),
		pubs:   make(map[string]kyber.Point),
		sealed: make(map[coup.Handle]ciphertext),
		roles:  make(map[coup.Role]kyber.Point, len(coup.Roles)),
	}
	for _, r := range coup.Roles {
		s.roles[r] = rolePoint(r)
	}
	return s
}

func rolePoint(r coup.Role) kyber.Point {
	return suite.Point().Pick(suite.XOF([]byte("mental-coup/role/" + string(r))))
}

// publicKey returns X = xG for owner, generating the secret x on first use.
// Caller holds mu.
func (s *Store) publicKey(owner string) kyber.Point {
	pub, ok := s.pubs[owner]
	if !ok {
		x := suite.Scalar().Pick(suite.RandomStream())
		pub = suite.Point().Mul(x, nil)
		s.keys[owner] = x
		s.pubs[owner] = pub
	}
	return pub
}

// PublicKey returns X = xG for owner, once the owner sealed something.
func (s *Store) PublicKey(owner string) (kyber.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pub, ok := s.pubs[owner]
	if !ok {
		return nil, false
	}
	return pub.Clone(), true
}

// Seal encrypts role for owner and returns a fresh handle.
func (s *Store) Seal(owner string, role coup.Role) (coup.Handle, error) {
	m, ok := s.roles[role]
	if !ok {
		return "", fmt.Errorf("cannot seal unknown role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pub := s.publicKey(owner)
	k := suite.Scalar().Pick(suite.RandomStream())
	ct := ciphertext{
		owner: owner,
		k:     suite.Point().Mul(k, nil),
		c:     suite.Point().Add(m, suite.Point().Mul(k, pub)),
	}
	h := coup.Handle(uuid.NewString())
	s.sealed[h] = ct
	return h, nil
}

// open checks ownership and returns the ciphertext with the owner's secret. Caller holds mu.
func (s *Store) open(owner string, h coup.Handle) (ciphertext, kyber.Scalar, error) {
	ct, ok := s.sealed[h]
	if !ok {
		return ciphertext{}, nil, fmt.Errorf("%w %s", ErrUnknownHandle, h)
	}
	if ct.owner != owner {
		return ciphertext{}, nil, fmt.Errorf("%s: %w", h, ErrNotOwner)
	}
	return ct, s.keys[owner], nil
}

// Proof shows that a handle decrypts to the claimed role without revealing the key.
type Proof struct {
	Handle  coup.Handle
	Owner   string
	Claimed coup.Role
	proof   *dleq.Proof
}

// Prove decrypts the handle and, when it holds claimed, proves that
// log_G(X) = log_K(C - M), i.e. that C - M is the owner's decryption share.
// A non-matching handle yields (nil, nil) and the proof is never built.
func (s *Store) Prove(owner string, h coup.Handle, claimed coup.Role) (*Proof, error) {
	m, ok := s.roles[claimed]
	if !ok {
		return nil, fmt.Errorf("unknown role %q", claimed)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, x, err := s.open(owner, h)
	if err != nil {
		return nil, err
	}
	share := suite.Point().Mul(x, ct.k)
	if !suite.Point().Sub(ct.c, share).Equal(m) {
		return nil, nil
	}
	p, _, _, err := dleq.NewDLEQProof(suite, suite.Point().Base(), ct.k, x)
	if err != nil {
		return nil, fmt.Errorf("build proof: %w", err)
	}
	return &Proof{Handle: h, Owner: owner, Claimed: claimed, proof: p}, nil
}

// Verify checks a proof against public values only: the owner's public key,
// the ciphertext and the claimed role point.
func (s *Store) Verify(p *Proof) error {
	if p == nil || p.proof == nil {
		return errors.New("empty proof")
	}
	m, ok := s.roles[p.Claimed]
	if !ok {
		return fmt.Errorf("unknown role %q", p.Claimed)
	}
	s.mu.RLock()
	ct, ok := s.sealed[p.Handle]
	pub := s.pubs[p.Owner]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownHandle, p.Handle)
	}
	if ct.owner != p.Owner || pub == nil {
		return fmt.Errorf("%s: %w", p.Handle, ErrNotOwner)
	}
	share := suite.Point().Sub(ct.c, m)
	if err := p.proof.Verify(suite, suite.Point().Base(), ct.k, pub, share); err != nil {
		return fmt.Errorf("verify proof: %w", err)
	}
	return nil
}

// UnsealAndCompare proves and verifies in one step.
func (s *Store) UnsealAndCompare(owner string, h coup.Handle, claimed coup.Role) (bool, error) {
	p, err := s.Prove(owner, h, claimed)
	if err != nil || p == nil {
		return false, err
	}
	if err := s.Verify(p); err != nil {
		return false, err
	}
	return true, nil
}

// Reveal decrypts the handle for its owner.
func (s *Store) Reveal(owner string, h coup.Handle) (coup.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, x, err := s.open(owner, h)
	if err != nil {
		return "", err
	}
	m := suite.Point().Sub(ct.c, suite.Point().Mul(x, ct.k))
	for _, r := range coup.Roles {
		if s.roles[r].Equal(m) {
			return r, nil
		}
	}
	return "", fmt.Errorf("handle %s decrypts to no role", h)
}
