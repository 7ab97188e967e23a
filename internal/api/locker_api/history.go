package locker_api

import (
	"net/http"

	"github.com/BearBump/LockerTrack/internal/models"
)

type historyPatchRequest struct {
	Observation *string `json:"observation"`
	ChangeDate  *string `json:"change_date"`
	ChangeTime  *string `json:"change_time"`
	ActingUser  *string `json:"acting_user"`
}

func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Ledger.ListHistory(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	e, err := a.svc.Ledger.GetEntry(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) updateHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req historyPatchRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	e, err := a.svc.Ledger.UpdateEntry(r.Context(), id, models.HistoryPatch(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) deactivateHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.svc.Ledger.DeactivateEntry(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
