package rpc

import (
	"net/http"
	"strings"

	"nftmarket/native/nft"
)

type initializeParams struct {
	Admin            string `json:"admin"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	Description      string `json:"description,omitempty"`
	BaseURI          string `json:"baseUri,omitempty"`
	RoyaltyBps       uint32 `json:"royaltyBps"`
	RoyaltyRecipient string `json:"royaltyRecipient,omitempty"`
	PlatformFeeBps   uint32 `json:"platformFeeBps"`
	PlatformAddress  string `json:"platformAddress,omitempty"`
	Signature        string `json:"signature"`
}

type mintParams struct {
	To        string `json:"to"`
	URI       string `json:"uri"`
	Signature string `json:"signature"`
}

type transferParams struct {
	From      string `json:"from"`
	To        string `json:"to"`
	TokenID   uint64 `json:"tokenId"`
	Signature string `json:"signature"`
}

type approveParams struct {
	Owner     string `json:"owner"`
	Delegate  string `json:"delegate"`
	TokenID   uint64 `json:"tokenId"`
	Signature string `json:"signature"`
}

type feeUpdateParams struct {
	Admin     string `json:"admin"`
	Bps       uint32 `json:"bps"`
	Recipient string `json:"recipient"`
	Signature string `json:"signature"`
}

type adminRotateParams struct {
	Admin     string `json:"admin"`
	NewAdmin  string `json:"newAdmin"`
	Signature string `json:"signature"`
}

type tokenIDParams struct {
	TokenID uint64 `json:"tokenId"`
}

type addressParams struct {
	Address string `json:"address"`
}

type approvalQueryParams struct {
	TokenID uint64 `json:"tokenId"`
	Address string `json:"address"`
}

type tokenResult struct {
	TokenID uint64 `json:"tokenId"`
	Owner   string `json:"owner"`
	URI     string `json:"uri"`
}

type metadataResult struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	BaseURI     string `json:"baseUri"`
}

type feeConfigResult struct {
	RoyaltyBps       uint32 `json:"royaltyBps"`
	RoyaltyRecipient string `json:"royaltyRecipient"`
	PlatformFeeBps   uint32 `json:"platformFeeBps"`
	PlatformAddress  string `json:"platformAddress"`
}

func formatToken(token *nft.Token) tokenResult {
	return tokenResult{TokenID: token.TokenID, Owner: formatAddress(token.Owner), URI: token.URI}
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params initializeParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	admin, err := decodeBech32(params.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid admin address", err.Error())
		return
	}
	if strings.TrimSpace(params.Name) == "" || strings.TrimSpace(params.Symbol) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "name and symbol are required", nil)
		return
	}
	royaltyRecipient := admin
	if strings.TrimSpace(params.RoyaltyRecipient) != "" {
		if royaltyRecipient, err = decodeBech32(params.RoyaltyRecipient); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid royalty recipient", err.Error())
			return
		}
	}
	platformAddress := admin
	if strings.TrimSpace(params.PlatformAddress) != "" {
		if platformAddress, err = decodeBech32(params.PlatformAddress); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid platform address", err.Error())
			return
		}
	}
	payload, err := InitializePayload(admin, params.Name, params.Symbol, params.Description, params.BaseURI,
		params.RoyaltyBps, royaltyRecipient, params.PlatformFeeBps, platformAddress)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	if err := s.registry.Initialize(ctx, nft.InitializeParams{
		Admin:            admin,
		Name:             params.Name,
		Symbol:           params.Symbol,
		Description:      params.Description,
		BaseURI:          params.BaseURI,
		RoyaltyBps:       params.RoyaltyBps,
		RoyaltyRecipient: royaltyRecipient,
		PlatformFeeBps:   params.PlatformFeeBps,
		PlatformAddress:  platformAddress,
	}); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, metadataResult{
		Name:        params.Name,
		Symbol:      params.Symbol,
		Description: params.Description,
		BaseURI:     params.BaseURI,
	})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params mintParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	to, err := decodeBech32(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	payload, err := MintPayload(to, params.URI)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	tokenID, err := s.registry.Mint(ctx, to, params.URI)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, tokenResult{TokenID: tokenID, Owner: params.To, URI: params.URI})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params transferParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	from, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid sender address", err.Error())
		return
	}
	to, err := decodeBech32(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	payload, err := TransferPayload(from, to, params.TokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	if err := s.registry.Transfer(ctx, from, to, params.TokenID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, tokenResult{TokenID: params.TokenID, Owner: params.To})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params approveParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	delegate, err := decodeBech32(params.Delegate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid delegate address", err.Error())
		return
	}
	payload, err := ApprovePayload(owner, delegate, params.TokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	if err := s.registry.Approve(ctx, owner, delegate, params.TokenID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"tokenId":  params.TokenID,
		"owner":    params.Owner,
		"delegate": params.Delegate,
	})
}

func (s *Server) handleIsApproved(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params approvalQueryParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	approved, err := s.registry.IsApproved(params.TokenID, addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tokenId": params.TokenID, "approved": approved})
}

func (s *Server) handleOwnerOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenIDParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := s.registry.OwnerOf(params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tokenId": params.TokenID, "owner": formatAddress(owner)})
}

func (s *Server) handleGetToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenIDParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	token, err := s.registry.Token(params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatToken(token))
}

func (s *Server) handleGetTokensByOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	tokens, err := s.registry.TokensByOwner(owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	results := make([]tokenResult, 0, len(tokens))
	for _, token := range tokens {
		results = append(results, formatToken(token))
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleGetTokenURI(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenIDParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	uri, err := s.registry.TokenURI(params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tokenId": params.TokenID, "uri": uri})
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	meta, err := s.registry.Metadata()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, metadataResult{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Description: meta.Description,
		BaseURI:     meta.BaseURI,
	})
}

func (s *Server) handleGetFeeConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	royalty, platform, err := s.registry.FeeConfig()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, feeConfigResult{
		RoyaltyBps:       royalty.Bps,
		RoyaltyRecipient: formatAddress(royalty.Recipient),
		PlatformFeeBps:   platform.Bps,
		PlatformAddress:  formatAddress(platform.Address),
	})
}

func (s *Server) handleGetTokenCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.registry.TokenCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"count": count})
}

func (s *Server) handleGetAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	admin, err := s.registry.Administrator()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"admin": formatAddress(admin)})
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	isAdmin, err := s.registry.IsAdmin(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"address": params.Address, "isAdmin": isAdmin})
}

func (s *Server) handleUpdateRoyalty(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleFeeUpdate(w, r, req, true)
}

func (s *Server) handleUpdatePlatformFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleFeeUpdate(w, r, req, false)
}

func (s *Server) handleFeeUpdate(w http.ResponseWriter, r *http.Request, req *RPCRequest, royalty bool) {
	var params feeUpdateParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	admin, err := decodeBech32(params.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid admin address", err.Error())
		return
	}
	recipient, err := decodeBech32(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	payload, err := FeeUpdatePayload(admin, params.Bps, recipient)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	if royalty {
		err = s.registry.UpdateRoyalty(ctx, admin, params.Bps, recipient)
	} else {
		err = s.registry.UpdatePlatformFee(ctx, admin, params.Bps, recipient)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"bps": params.Bps, "recipient": params.Recipient})
}

func (s *Server) handleUpdateAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params adminRotateParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	admin, err := decodeBech32(params.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid admin address", err.Error())
		return
	}
	newAdmin, err := decodeBech32(params.NewAdmin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid new admin address", err.Error())
		return
	}
	payload, err := AdminRotatePayload(admin, newAdmin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	if err := s.registry.UpdateAdmin(ctx, admin, newAdmin); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"admin": params.NewAdmin})
}
