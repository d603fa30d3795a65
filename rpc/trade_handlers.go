package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tradesafe/native/escrow"
	"tradesafe/native/reputation"
	"tradesafe/native/trade"
)

type tradeCreateParams struct {
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee,omitempty"`
	Description string `json:"description,omitempty"`
}

type tradeActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type tradeIDParams struct {
	ID uint64 `json:"id"`
}

type tradeRatingParams struct {
	ID      uint64 `json:"id"`
	Caller  string `json:"caller"`
	Value   uint8  `json:"value"`
	Comment string `json:"comment,omitempty"`
}

type tradeCreateResult struct {
	ID uint64 `json:"id"`
}

type principalParams struct {
	Principal string `json:"principal"`
}

// moduleError translates engine sentinel errors into the JSON-RPC taxonomy.
// Unknown errors surface as internal.
func moduleError(err error) (int, int, string) {
	switch {
	case errors.Is(err, trade.ErrInvalidParty):
		return http.StatusBadRequest, codeInvalidParams, "invalid_party"
	case errors.Is(err, trade.ErrInvalidAmount):
		return http.StatusBadRequest, codeInvalidParams, "invalid_amount"
	case errors.Is(err, trade.ErrInvalidDescription):
		return http.StatusBadRequest, codeInvalidParams, "invalid_description"
	case errors.Is(err, escrow.ErrFundsUnavailable):
		return http.StatusUnprocessableEntity, codeInvalidParams, "funds_unavailable"
	case errors.Is(err, trade.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "not_found"
	case errors.Is(err, trade.ErrUnauthorized):
		return http.StatusForbidden, codeForbidden, "unauthorized"
	case errors.Is(err, trade.ErrInvalidState):
		return http.StatusConflict, codeConflict, "invalid_state"
	case errors.Is(err, reputation.ErrAlreadyRated):
		return http.StatusConflict, codeConflict, "already_rated"
	case errors.Is(err, reputation.ErrInvalidRating):
		return http.StatusBadRequest, codeInvalidParams, "invalid_rating"
	case errors.Is(err, escrow.ErrAlreadyReleased):
		return http.StatusConflict, codeConflict, "already_released"
	case errors.Is(err, escrow.ErrAlreadyLocked):
		return http.StatusConflict, codeConflict, "already_locked"
	case errors.Is(err, trade.ErrResolverNotConfigured):
		return http.StatusNotImplemented, codeInternal, "resolver_not_configured"
	default:
		return http.StatusInternalServerError, codeInternal, "internal_error"
	}
}

func writeModuleError(w http.ResponseWriter, id interface{}, err error) string {
	status, code, message := moduleError(err)
	writeError(w, status, id, code, message, err.Error())
	return message
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleTradeCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params tradeCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	fee, err := parseNonNegativeBigInt(params.Fee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	id, err := s.node.TradeCreate(buyer, seller, amount, fee, params.Description)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, tradeCreateResult{ID: id})
	return "ok"
}

func (s *Server) handleTradeConfirmDelivery(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params tradeActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if err := s.node.TradeConfirmDelivery(params.ID, caller); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleTradeDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params tradeActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	if err := s.node.TradeDispute(params.ID, caller); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleTradeGet(w http.ResponseWriter, req *RPCRequest) string {
	var params tradeIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	record, ok, err := s.node.TradeGet(params.ID)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return "ok"
	}
	writeResult(w, req.ID, toTradeJSON(record))
	return "ok"
}

func (s *Server) handleTradeSubmitRating(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	var params tradeRatingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	value := reputation.RatingValue(params.Value)
	if !value.Valid() {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_rating",
			"value must be 1 (positive) or 2 (negative), got "+strconv.Itoa(int(params.Value)))
		return "invalid_rating"
	}
	if err := s.node.TradeSubmitRating(params.ID, caller, value, params.Comment); err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params principalParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	addr, err := parseAddress(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	account, err := s.node.GetAccount(addr)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	writeResult(w, req.ID, balanceJSON{Principal: params.Principal, Balance: account.Balance.String()})
	return "ok"
}
