package state

import (
	"fmt"
	"math/big"

	"trustrent/native/certificate"
)

var certificatePrefix = []byte("certificate/")

const counterCertificates = "certificates"

type storedCertificate struct {
	ID       uint64
	Owner    [20]byte
	URI      string
	IssuedAt *big.Int
}

func certificateKey(id uint64) []byte {
	return prefixedKey(certificatePrefix, uint64Bytes(id))
}

func (m *Manager) CertificateNextID() (uint64, error) { return m.NextID(counterCertificates) }

func (m *Manager) CertificatePut(c *certificate.Certificate) error {
	if c == nil || c.ID == 0 {
		return fmt.Errorf("certificate: id must be set")
	}
	return m.KVPut(certificateKey(c.ID), &storedCertificate{
		ID:       c.ID,
		Owner:    c.Owner,
		URI:      c.URI,
		IssuedAt: big.NewInt(c.IssuedAt),
	})
}

func (m *Manager) CertificateGet(id uint64) (*certificate.Certificate, bool, error) {
	stored := new(storedCertificate)
	ok, err := m.KVGet(certificateKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &certificate.Certificate{
		ID:       stored.ID,
		Owner:    stored.Owner,
		URI:      stored.URI,
		IssuedAt: bigOrZero(stored.IssuedAt).Int64(),
	}, true, nil
}
