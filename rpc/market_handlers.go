package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"nftmarket/native/market"
)

type marketListParams struct {
	Owner     string `json:"owner"`
	TokenID   uint64 `json:"tokenId"`
	Price     string `json:"price"`
	Signature string `json:"signature"`
}

type marketActionParams struct {
	Caller    string `json:"caller"`
	TokenID   uint64 `json:"tokenId"`
	Signature string `json:"signature"`
}

type listingResult struct {
	TokenID uint64 `json:"tokenId"`
	Seller  string `json:"seller"`
	Price   string `json:"price"`
}

type settlementResult struct {
	TokenID          uint64 `json:"tokenId"`
	Buyer            string `json:"buyer"`
	Seller           string `json:"seller"`
	Price            string `json:"price"`
	Royalty          string `json:"royalty"`
	RoyaltyRecipient string `json:"royaltyRecipient"`
	PlatformFee      string `json:"platformFee"`
	PlatformAddress  string `json:"platformAddress"`
	SellerAmount     string `json:"sellerAmount"`
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("price is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", value)
	}
	return amount, nil
}

func formatListing(listing *market.Listing) listingResult {
	return listingResult{
		TokenID: listing.TokenID,
		Seller:  formatAddress(listing.Seller),
		Price:   listing.Price.String(),
	}
}

func formatSettlement(s *market.Settlement) settlementResult {
	return settlementResult{
		TokenID:          s.TokenID,
		Buyer:            formatAddress(s.Buyer),
		Seller:           formatAddress(s.Seller),
		Price:            s.Price.String(),
		Royalty:          s.Royalty.String(),
		RoyaltyRecipient: formatAddress(s.RoyaltyRecipient),
		PlatformFee:      s.PlatformFee.String(),
		PlatformAddress:  formatAddress(s.PlatformAddress),
		SellerAmount:     s.SellerAmount.String(),
	}
}

func (s *Server) handleMarketList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketListParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payload, err := ListPayload(owner, params.TokenID, price)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	listing, err := s.marketplace.List(ctx, owner, params.TokenID, price)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleMarketCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketActionParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payload, err := CancelPayload(caller, params.TokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	if err := s.marketplace.Cancel(ctx, caller, params.TokenID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tokenId": params.TokenID, "cancelled": true})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketActionParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	buyer, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payload, err := BuyPayload(buyer, params.TokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to encode payload", err.Error())
		return
	}
	ctx, err := authorizeSigned(r, req.Method, payload, params.Signature)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return
	}
	settlement, err := s.marketplace.Buy(ctx, buyer, params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSettlement(settlement))
}

func (s *Server) handleMarketIsListed(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenIDParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	listed, err := s.marketplace.IsListed(params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tokenId": params.TokenID, "listed": listed})
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenIDParams
	if rpcErr := singleParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	listing, ok, err := s.marketplace.ListingOf(params.TokenID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "token is not listed", nil)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleMarketGetListings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	listings, err := s.marketplace.AllListings()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	results := make([]listingResult, 0, len(listings))
	for _, listing := range listings {
		results = append(results, formatListing(listing))
	}
	writeResult(w, req.ID, results)
}
