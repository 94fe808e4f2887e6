package rpc

type balanceParams struct {
	Address string `json:"address"`
}

type allowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender,omitempty"`
}

type approveParams struct {
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

type transferParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type certificateIDParams struct {
	ID uint64 `json:"id"`
}

type certificateTransferParams struct {
	ID uint64 `json:"id"`
	To string `json:"to"`
}

// spenderOrVault resolves an optional spender, defaulting to the escrow vault
// that pulls booking payments.
func (s *Server) spenderOrVault(value string) ([20]byte, *RPCError) {
	if value == "" {
		return s.node.VaultAddress(), nil
	}
	return parseAddressParam("spender", value)
}

func (s *Server) handleBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params balanceParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		return nil, toRPCError(err)
	}
	return AmountResult{Amount: formatBig(balance)}, nil
}

func (s *Server) handleAllowance(req *RPCRequest) (interface{}, *RPCError) {
	var params allowanceParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := s.spenderOrVault(params.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowance, err := s.node.Allowance(owner, spender)
	if err != nil {
		return nil, toRPCError(err)
	}
	return AmountResult{Amount: formatBig(allowance)}, nil
}

func (s *Server) handleApprove(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params approveParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := s.spenderOrVault(params.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount, true)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Approve(caller, spender, amount); err != nil {
		return nil, toRPCError(err)
	}
	return SuccessResult{Success: true}, nil
}

func (s *Server) handleTransfer(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params transferParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount, false)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Transfer(caller, to, amount); err != nil {
		return nil, toRPCError(err)
	}
	return SuccessResult{Success: true}, nil
}

func (s *Server) handleFaucet(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	if rpcErr := decodeParams(req, &struct{}{}, false); rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.node.Faucet(caller)
	if err != nil {
		return nil, toRPCError(err)
	}
	return AmountResult{Amount: formatBig(amount)}, nil
}

func (s *Server) handleCertificateGet(req *RPCRequest) (interface{}, *RPCError) {
	var params certificateIDParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	cert, err := s.node.Certificate(params.ID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return certificateResult(cert), nil
}

func (s *Server) handleCertificateTransfer(caller [20]byte, req *RPCRequest) (interface{}, *RPCError) {
	var params certificateTransferParams
	if rpcErr := decodeParams(req, &params, true); rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.TransferCertificate(caller, to, params.ID); err != nil {
		return nil, toRPCError(err)
	}
	return SuccessResult{Success: true}, nil
}
