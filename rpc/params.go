package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"trustrent/crypto"
)

// decodeParams unmarshals the single params object into dst. Methods without
// required fields accept an empty params list.
func decodeParams(req *RPCRequest, dst interface{}, required bool) *RPCError {
	if len(req.Params) == 0 {
		if required {
			return invalidParams("params object required")
		}
		return nil
	}
	if len(req.Params) != 1 {
		return invalidParams("expected a single params object")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams(fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

func parseAmount(field, value string, allowZero bool) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams(field + " is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams(field + " must be a base-10 integer")
	}
	if amount.Sign() < 0 || (!allowZero && amount.Sign() == 0) {
		return nil, invalidParams(field + " must be positive")
	}
	return amount, nil
}

func parseAddressParam(field, value string) ([20]byte, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, invalidParams(field + " is required")
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return [20]byte{}, invalidParams(fmt.Sprintf("invalid %s: %v", field, err))
	}
	return addr, nil
}
