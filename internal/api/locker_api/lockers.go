package locker_api

import (
	"net/http"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/auth"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/services/lockers"
	"github.com/go-chi/chi/v5"
)

type assignRequest struct {
	PackageID   uint64   `json:"package_id"`
	LockerID    uint64   `json:"locker_id"`
	WeightLB    *float64 `json:"weight_lb"`
	Observation *string  `json:"observation"`
}

type assignmentPatchRequest struct {
	PackageID   *uint64  `json:"package_id"`
	LockerID    *uint64  `json:"locker_id"`
	WeightLB    *float64 `json:"weight_lb"`
	Observation *string  `json:"observation"`
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func (a *API) getLocker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	l, err := a.svc.Lockers.GetLocker(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) listAssignments(w http.ResponseWriter, r *http.Request) {
	lockerID, err := optionalID(r.URL.Query().Get("locker_id"), "locker_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.svc.Lockers.ListAssignments(r.Context(), lockerID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.svc.Lockers.GetAssignment(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.svc.Lockers.Assign(r.Context(), lockers.AssignRequest(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) updateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req assignmentPatchRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.svc.Lockers.UpdateAssignment(r.Context(), id, models.AssignmentPatch(req))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) unassign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.Lockers.Unassign(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeOK(w, "assignment deactivated")
}

func (a *API) myLocker(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	l, err := a.svc.Lockers.MyLocker(r.Context(), id.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) myPackages(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	out, err := a.svc.Lockers.MyPackages(r.Context(), id.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) myPackageHistory(w http.ResponseWriter, r *http.Request) {
	pkgID, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	id, _ := auth.FromContext(r.Context())
	out, err := a.svc.Lockers.MyPackageHistory(r.Context(), id.UserID, pkgID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) trackingView(w http.ResponseWriter, r *http.Request) {
	tracking := chiParam(r, "tracking")
	if tracking == "" {
		a.writeError(w, r, apperrors.Invalid("tracking number is required"))
		return
	}
	v, err := a.svc.Packages.TrackingView(r.Context(), tracking)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
