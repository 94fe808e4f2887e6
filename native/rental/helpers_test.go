package rental

import "trustrent/crypto"

func formatAddr(addr [20]byte) string { return crypto.FormatAddress(addr) }
