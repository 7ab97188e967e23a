package locker_api

import (
	"net/http"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/services/importer"
	"github.com/BearBump/LockerTrack/internal/services/ledger"
	"github.com/BearBump/LockerTrack/internal/services/packages"
)

type packageFields struct {
	Service          *string  `json:"service"`
	Carrier          *string  `json:"carrier"`
	Sender           *string  `json:"sender"`
	WeightLB         *float64 `json:"weight_lb"`
	ShipDate         *string  `json:"ship_date"`
	CarrierReference *string  `json:"carrier_reference"`
	GroupID          *uint64  `json:"group_id"`
}

type packageCreateRequest struct {
	TrackingNumber string `json:"tracking_number"`
	packageFields
	StatusID *uint64 `json:"status_id"`
}

type packagePatchRequest struct {
	TrackingNumber *string `json:"tracking_number"`
	packageFields
}

type transitionRequest struct {
	StatusID    uint64  `json:"status_id"`
	ChangeDate  string  `json:"change_date"`
	ChangeTime  string  `json:"change_time"`
	Observation *string `json:"observation"`
}

type batchTransitionRequest struct {
	IDs []uint64 `json:"ids"`
	transitionRequest
}

type idsRequest struct {
	IDs []uint64 `json:"ids"`
}

func (a *API) listPackages(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	groupID, err := optionalID(r.URL.Query().Get("group_id"), "group_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.svc.Packages.List(r.Context(), page, limit, groupID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getPackage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.svc.Packages.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) getPackageByTracking(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.Packages.GetByTracking(r.Context(), chiParam(r, "tracking"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) createPackage(w http.ResponseWriter, r *http.Request) {
	var req packageCreateRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.svc.Packages.Create(r.Context(), packages.CreateRequest{
		TrackingNumber: req.TrackingNumber,
		PackageFields:  models.PackageFields(req.packageFields),
		StatusID:       req.StatusID,
		ActingUser:     actingUser(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updatePackage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req packagePatchRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.svc.Packages.Update(r.Context(), id, models.PackagePatch{
		TrackingNumber: req.TrackingNumber,
		PackageFields:  models.PackageFields(req.packageFields),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deactivatePackage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.Packages.Deactivate(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeOK(w, "package deactivated")
}

func (a *API) deactivatePackages(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.svc.Packages.DeactivateMultiple(r.Context(), req.IDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) transition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.svc.Ledger.ApplyTransition(r.Context(), ledger.TransitionRequest{
		PackageID:   id,
		StatusID:    req.StatusID,
		ChangeDate:  req.ChangeDate,
		ChangeTime:  req.ChangeTime,
		Observation: req.Observation,
		ActingUser:  actingUser(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) transitionMultiple(w http.ResponseWriter, r *http.Request) {
	var req batchTransitionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.svc.Ledger.ApplyTransitionMultiple(r.Context(), ledger.BatchTransitionRequest{
		PackageIDs:  req.IDs,
		StatusID:    req.StatusID,
		ChangeDate:  req.ChangeDate,
		ChangeTime:  req.ChangeTime,
		Observation: req.Observation,
		ActingUser:  actingUser(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) packageHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.svc.Ledger.PackageHistory(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// importPackages takes a multipart "file" plus optional status_id and
// group_id form fields applied to every row.
func (a *API) importPackages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxImportBytes)
	if err := r.ParseMultipartForm(a.opts.MaxImportBytes); err != nil {
		a.writeError(w, r, apperrors.Invalid("cannot read upload: %v", err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, r, apperrors.Invalid("an .xlsx file is required in field \"file\""))
		return
	}
	defer func() { _ = file.Close() }()

	statusID, err := optionalID(r.FormValue("status_id"), "status_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	groupID, err := optionalID(r.FormValue("group_id"), "group_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	sum, err := a.svc.Importer.Import(r.Context(), file, importer.Options{
		StatusID:   statusID,
		GroupID:    groupID,
		ActingUser: actingUser(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
