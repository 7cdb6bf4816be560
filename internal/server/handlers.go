package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/holiman/uint256"

	"github.com/zkdrop/zkdrop-node/internal/airdrop"
	"github.com/zkdrop/zkdrop-node/internal/claims"
	"github.com/zkdrop/zkdrop-node/internal/ledger"
	"github.com/zkdrop/zkdrop-node/internal/membership"
	"github.com/zkdrop/zkdrop-node/internal/verifier"
	zkerrors "github.com/zkdrop/zkdrop-node/pkg/errors"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

type handler struct {
	airdrops *airdrop.Registry
	engine   *claims.Engine
	groups   *membership.Service
	logger   *slog.Logger
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type airdropBody struct {
	ID      uint64 `json:"id"`
	GroupID uint64 `json:"group_id"`
	Token   string `json:"token"`
	Manager string `json:"manager"`
	Holder  string `json:"holder"`
	Amount  string `json:"amount"`
}

type createAirdropRequest struct {
	GroupID uint64 `json:"group_id"`
	Token   string `json:"token"`
	Manager string `json:"manager"`
	Holder  string `json:"holder"`
	Amount  string `json:"amount"`
}

type claimRequest struct {
	Root          string   `json:"root"`
	NullifierHash string   `json:"nullifier_hash"`
	Receiver      string   `json:"receiver"`
	Proof         []string `json:"proof"`
}

type claimResponse struct {
	AirdropID     uint64 `json:"airdrop_id"`
	NullifierHash string `json:"nullifier_hash"`
	Receiver      string `json:"receiver"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
}

func (h *handler) createAirdrop(w http.ResponseWriter, r *http.Request) {
	var req createAirdropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid JSON body")
		return
	}

	params := airdrop.CreateParams{GroupID: types.GroupID(req.GroupID)}
	var err error
	if params.Token, err = types.HexToAddress(req.Token); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid token address")
		return
	}
	if params.Manager, err = types.HexToAddress(req.Manager); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid manager address")
		return
	}
	if params.Holder, err = types.HexToAddress(req.Holder); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid holder address")
		return
	}
	if params.Amount, err = uint256.FromDecimal(req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid amount")
		return
	}

	record, err := h.airdrops.Create(r.Context(), params)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordBody(record))
}

func (h *handler) getAirdrop(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseAirdropID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid airdrop id")
		return
	}

	record, err := h.airdrops.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordBody(record))
}

func (h *handler) claim(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseAirdropID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid airdrop id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid JSON body")
		return
	}

	claim := claims.Request{AirdropID: id}
	if claim.Root, err = types.HexToHash(req.Root); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid root")
		return
	}
	if claim.NullifierHash, err = types.HexToHash(req.NullifierHash); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid nullifier hash")
		return
	}
	if claim.Receiver, err = types.HexToAddress(req.Receiver); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid receiver address")
		return
	}
	if claim.Proof, err = verifier.ParseProof(req.Proof); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid proof encoding")
		return
	}

	receipt, err := h.engine.Claim(r.Context(), claim)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		AirdropID:     uint64(receipt.AirdropID),
		NullifierHash: receipt.NullifierHash.Hex(),
		Receiver:      receipt.Receiver.Hex(),
		Token:         receipt.Token.Hex(),
		Amount:        receipt.Amount.Dec(),
	})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, zkerrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, zkerrors.ErrInvalidRoot):
		writeError(w, http.StatusUnprocessableEntity, "invalid_root", err.Error())
	case errors.Is(err, zkerrors.ErrInvalidProof):
		writeError(w, http.StatusUnprocessableEntity, "invalid_proof", err.Error())
	case errors.Is(err, zkerrors.ErrInvalidNullifier):
		writeError(w, http.StatusUnprocessableEntity, "invalid_nullifier", err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrInsufficientAllowance):
		writeError(w, http.StatusConflict, "transfer_failed", err.Error())
	case errors.Is(err, zkerrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func recordBody(record *airdrop.Record) airdropBody {
	return airdropBody{
		ID:      uint64(record.ID),
		GroupID: uint64(record.GroupID),
		Token:   record.Token.Hex(),
		Manager: record.Manager.Hex(),
		Holder:  record.Holder.Hex(),
		Amount:  record.Amount.Dec(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
