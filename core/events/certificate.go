package events

import (
	"strconv"

	"trustrent/core/types"
	"trustrent/crypto"
)

const (
	// TypeCertificateMinted is emitted when a booking certificate is issued.
	TypeCertificateMinted = "certificate.minted"
	// TypeCertificateTransferred is emitted when a certificate changes owner.
	TypeCertificateTransferred = "certificate.transferred"
)

type CertificateMinted struct {
	ID    uint64
	Owner [20]byte
	URI   string
}

func (CertificateMinted) EventType() string { return TypeCertificateMinted }

func (e CertificateMinted) Event() *types.Event {
	return types.NewEvent(TypeCertificateMinted,
		"certificateId", strconv.FormatUint(e.ID, 10),
		"owner", crypto.FormatAddress(e.Owner),
		"uri", e.URI,
	)
}

type CertificateTransferred struct {
	ID   uint64
	From [20]byte
	To   [20]byte
}

func (CertificateTransferred) EventType() string { return TypeCertificateTransferred }

func (e CertificateTransferred) Event() *types.Event {
	return types.NewEvent(TypeCertificateTransferred,
		"certificateId", strconv.FormatUint(e.ID, 10),
		"from", crypto.FormatAddress(e.From),
		"to", crypto.FormatAddress(e.To),
	)
}
