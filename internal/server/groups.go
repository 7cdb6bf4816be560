package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/zkdrop/zkdrop-node/internal/membership"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

type createGroupRequest struct {
	GroupID uint64 `json:"group_id"`
	Depth   int    `json:"depth"`
}

type groupBody struct {
	GroupID uint64 `json:"group_id"`
	Root    string `json:"root"`
	Members uint64 `json:"members,omitempty"`
}

type addMemberRequest struct {
	Commitment string `json:"commitment"`
}

func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid JSON body")
		return
	}

	root, err := h.groups.CreateGroup(r.Context(), types.GroupID(req.GroupID), req.Depth)
	if err != nil {
		h.writeGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, groupBody{GroupID: req.GroupID, Root: root.Hex()})
}

func (h *handler) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid group id")
		return
	}

	root, err := h.groups.Root(types.GroupID(id))
	if err != nil {
		h.writeGroupError(w, r, err)
		return
	}
	members, err := h.groups.MemberCount(types.GroupID(id))
	if err != nil {
		h.writeGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupBody{GroupID: id, Root: root.Hex(), Members: members})
}

func (h *handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid group id")
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid JSON body")
		return
	}
	commitment, err := types.HexToHash(req.Commitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", "invalid commitment")
		return
	}

	root, err := h.groups.AddMember(r.Context(), types.GroupID(id), commitment)
	if err != nil {
		h.writeGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupBody{GroupID: id, Root: root.Hex()})
}

func (h *handler) writeGroupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, membership.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, membership.ErrGroupExists):
		writeError(w, http.StatusConflict, "group_exists", err.Error())
	case errors.Is(err, membership.ErrTreeFull):
		writeError(w, http.StatusConflict, "tree_full", err.Error())
	default:
		h.writeDomainError(w, r, err)
	}
}
