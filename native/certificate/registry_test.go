package certificate_test

import (
	"errors"
	"testing"

	"trustrent/core/events"
	"trustrent/core/state"
	"trustrent/native/certificate"
	"trustrent/storage"
)

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func newRegistry(t *testing.T) (*certificate.Registry, *events.Collector) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	reg := certificate.NewRegistry(mgr)
	collector := &events.Collector{}
	reg.SetEmitter(collector)
	reg.SetNowFunc(func() int64 { return 1_700_000_000 })
	return reg, collector
}

func TestMintAssignsSequentialIDs(t *testing.T) {
	reg, collector := newRegistry(t)
	first, err := reg.Mint(addr(1), "ipfs://metadata")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, err := reg.Mint(addr(2), "")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("unexpected ids %d %d", first, second)
	}
	owner, err := reg.OwnerOf(1)
	if err != nil || owner != addr(1) {
		t.Fatalf("owner %x err %v", owner, err)
	}
	uri, err := reg.URIOf(1)
	if err != nil || uri != "ipfs://metadata" {
		t.Fatalf("uri %q err %v", uri, err)
	}
	cert, err := reg.Certificate(1)
	if err != nil || cert.IssuedAt != 1_700_000_000 {
		t.Fatalf("certificate %+v err %v", cert, err)
	}
	if got := len(collector.Events()); got != 2 {
		t.Fatalf("expected 2 mint events, got %d", got)
	}
}

func TestMintRejectsZeroOwner(t *testing.T) {
	reg, _ := newRegistry(t)
	if _, err := reg.Mint([20]byte{}, ""); !errors.Is(err, certificate.ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

func TestUnknownCertificate(t *testing.T) {
	reg, _ := newRegistry(t)
	if _, err := reg.OwnerOf(7); !errors.Is(err, certificate.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransferRequiresOwner(t *testing.T) {
	reg, collector := newRegistry(t)
	id, err := reg.Mint(addr(1), "")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := reg.Transfer(addr(2), addr(3), id); !errors.Is(err, certificate.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := reg.Transfer(addr(1), addr(3), id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, _ := reg.OwnerOf(id)
	if owner != addr(3) {
		t.Fatalf("owner not updated")
	}
	evts := collector.Events()
	if evts[len(evts)-1].Type != events.TypeCertificateTransferred {
		t.Fatalf("unexpected last event %s", evts[len(evts)-1].Type)
	}
}
