package rpc

import (
	"net/http"
)

func (s *Server) handleReputationGetUserRating(w http.ResponseWriter, req *RPCRequest) string {
	var params principalParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	subject, err := parseAddress(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "invalid_params"
	}
	aggregate, ok, err := s.node.ReputationGet(subject)
	if err != nil {
		return writeModuleError(w, req.ID, err)
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return "ok"
	}
	writeResult(w, req.ID, userRatingJSON{
		Principal:       params.Principal,
		PositiveRatings: aggregate.PositiveRatings,
		TotalTrades:     aggregate.TotalTrades,
	})
	return "ok"
}
