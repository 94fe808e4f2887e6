package certificate

import (
	"errors"
	"fmt"
	"time"

	"trustrent/core/events"
)

var (
	ErrNotFound    = errors.New("certificate: not found")
	ErrNotOwner    = errors.New("certificate: caller is not the owner")
	ErrZeroAddress = errors.New("certificate: zero address")
	errNilState    = errors.New("certificate: state not configured")
)

// Certificate proves occupancy rights for a booking.
type Certificate struct {
	ID       uint64
	Owner    [20]byte
	URI      string
	IssuedAt int64
}

type registryState interface {
	CertificateNextID() (uint64, error)
	CertificatePut(*Certificate) error
	CertificateGet(id uint64) (*Certificate, bool, error)
}

// Registry mints and tracks booking certificates.
type Registry struct {
	state   registryState
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry returns a registry operating on state.
func NewRegistry(state registryState) *Registry {
	return &Registry{
		state:   state,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil disables events.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the issuance clock.
func (r *Registry) SetNowFunc(now func() int64) {
	if now != nil {
		r.nowFn = now
	}
}

// Mint issues a new certificate to owner carrying metadataURI.
func (r *Registry) Mint(owner [20]byte, metadataURI string) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	if owner == ([20]byte{}) {
		return 0, ErrZeroAddress
	}
	id, err := r.state.CertificateNextID()
	if err != nil {
		return 0, err
	}
	cert := &Certificate{ID: id, Owner: owner, URI: metadataURI, IssuedAt: r.nowFn()}
	if err := r.state.CertificatePut(cert); err != nil {
		return 0, err
	}
	r.emitter.Emit(events.CertificateMinted{ID: id, Owner: owner, URI: metadataURI})
	return id, nil
}

// Certificate returns the certificate with the given id.
func (r *Registry) Certificate(id uint64) (*Certificate, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	cert, ok, err := r.state.CertificateGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return cert, nil
}

// OwnerOf returns the current owner of the certificate.
func (r *Registry) OwnerOf(id uint64) ([20]byte, error) {
	cert, err := r.Certificate(id)
	if err != nil {
		return [20]byte{}, err
	}
	return cert.Owner, nil
}

// URIOf returns the metadata URI of the certificate.
func (r *Registry) URIOf(id uint64) (string, error) {
	cert, err := r.Certificate(id)
	if err != nil {
		return "", err
	}
	return cert.URI, nil
}

// Transfer hands the certificate from its owner to a new owner.
func (r *Registry) Transfer(caller, to [20]byte, id uint64) error {
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	cert, err := r.Certificate(id)
	if err != nil {
		return err
	}
	if cert.Owner != caller {
		return ErrNotOwner
	}
	cert.Owner = to
	if err := r.state.CertificatePut(cert); err != nil {
		return err
	}
	r.emitter.Emit(events.CertificateTransferred{ID: id, From: caller, To: to})
	return nil
}
