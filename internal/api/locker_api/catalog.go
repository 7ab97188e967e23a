package locker_api

import (
	"net/http"

	"github.com/BearBump/LockerTrack/internal/models"
)

type statusCreateRequest struct {
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
	Color        string `json:"color"`
}

type statusPatchRequest struct {
	Name         *string `json:"name"`
	DisplayOrder *int    `json:"display_order"`
	Color        *string `json:"color"`
}

func (a *API) listStatuses(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Statuses.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	st, err := a.svc.Statuses.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) createStatus(w http.ResponseWriter, r *http.Request) {
	var req statusCreateRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	st, err := a.svc.Statuses.Create(r.Context(), models.StatusCreate(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (a *API) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req statusPatchRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	st, err := a.svc.Statuses.Update(r.Context(), id, models.StatusPatch(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) deactivateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.Statuses.Deactivate(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeOK(w, "status deactivated")
}

type groupRequest struct {
	Name      *string `json:"name"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Groups.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	g, err := a.svc.Groups.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	in := models.GroupCreate{StartDate: req.StartDate, EndDate: req.EndDate}
	if req.Name != nil {
		in.Name = *req.Name
	}
	g, err := a.svc.Groups.Create(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req groupRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	g, err := a.svc.Groups.Update(r.Context(), id, models.GroupPatch(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) deactivateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.svc.Groups.Deactivate(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
