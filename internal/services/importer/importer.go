// Package importer loads packages from an .xlsx manifest. Every row goes
// through the package upsert; a bad row is counted and skipped.
package importer

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/services/packages"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Manifest column headers, matched after trimming.
const (
	ColService  = "SERVICIO"
	ColTracking = "GUIA"
	ColShipDate = "Fecha salida"
	ColSender   = "Remitente"
	ColWeight   = "PESO LB"
	ColCarrier  = "Courier"
)

type Upserter interface {
	Upsert(ctx context.Context, row models.ImportRow, actingUser *string) (*packages.UpsertResult, error)
}

type Importer struct {
	pkgs Upserter
	log  *zap.Logger
}

func New(pkgs Upserter, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{pkgs: pkgs, log: log}
}

// Options apply to every row of a run.
type Options struct {
	StatusID   *uint64
	GroupID    *uint64
	ActingUser *string
}

type RowFailure struct {
	Row            int    `json:"row"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Reason         string `json:"reason"`
	Message        string `json:"message"`
}

type Summary struct {
	RunID    string       `json:"run_id"`
	Inserted int          `json:"inserted"`
	Updated  int          `json:"updated"`
	Errors   int          `json:"errors"`
	Total    int          `json:"total"`
	Failures []RowFailure `json:"failures"`
}

// Import reads the first sheet of the workbook in r. Only an unreadable
// workbook or a missing GUIA column fails the whole run.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts Options) (*Summary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Invalid("cannot read workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperrors.Invalid("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.Invalid("cannot read sheet %q: %v", sheet, err)
	}

	sum := &Summary{RunID: uuid.NewString(), Failures: make([]RowFailure, 0)}
	log := im.log.With(zap.String("run_id", sum.RunID), zap.String("sheet", sheet))
	if len(rows) == 0 {
		return sum, nil
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.TrimSpace(h)] = i
	}
	if _, ok := cols[ColTracking]; !ok {
		return nil, apperrors.Invalid("missing %q column", ColTracking)
	}

	for i, raw := range rows[1:] {
		if blank(raw) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "import cancelled")
		}
		rowNum := i + 2
		sum.Total++

		row, err := parseRow(raw, cols)
		if err == nil {
			row.StatusID, row.GroupID = opts.StatusID, opts.GroupID
			var res *packages.UpsertResult
			res, err = im.pkgs.Upsert(ctx, row, opts.ActingUser)
			if err == nil {
				if res.Action == packages.ActionCreated {
					sum.Inserted++
				} else {
					sum.Updated++
				}
				continue
			}
		}

		sum.Errors++
		sum.Failures = append(sum.Failures, RowFailure{
			Row:            rowNum,
			TrackingNumber: row.TrackingNumber,
			Reason:         string(apperrors.ReasonOf(err)),
			Message:        err.Error(),
		})
		log.Warn("import row failed", zap.Int("row", rowNum), zap.String("tracking_number", row.TrackingNumber), zap.Error(err))
	}

	log.Info("import finished",
		zap.Int("total", sum.Total),
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
		zap.Int("errors", sum.Errors),
	)
	return sum, nil
}

func parseRow(raw []string, cols map[string]int) (models.ImportRow, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(raw) {
			return ""
		}
		return strings.TrimSpace(raw[i])
	}
	opt := func(name string) *string {
		if v := cell(name); v != "" {
			return &v
		}
		return nil
	}

	row := models.ImportRow{TrackingNumber: cell(ColTracking)}
	if row.TrackingNumber == "" {
		return row, apperrors.Invalid("%s is empty", ColTracking)
	}
	row.Service = opt(ColService)
	row.Sender = opt(ColSender)
	row.Carrier = opt(ColCarrier)

	if v := cell(ColWeight); v != "" {
		w, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			return row, apperrors.Invalid("%s %q is not a number", ColWeight, v)
		}
		row.WeightLB = &w
	}
	// an unrecognized date is dropped rather than failing the row
	if d, ok := ParseShipDate(cell(ColShipDate)); ok {
		row.ShipDate = &d
	}
	return row, nil
}

var dayFirst = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)

// ParseShipDate accepts an Excel serial day number, YYYY-MM-DD, or
// dd/mm/yyyy and dd-mm-yyyy. It returns YYYY-MM-DD.
func ParseShipDate(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", false
		}
		return t.Format(models.DateLayout), true
	}
	if d, ok := models.NormalizeDate(v); ok {
		return d, true
	}
	if m := dayFirst.FindStringSubmatch(v); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || int(t.Month()) != month {
			return "", false
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
	}
	return "", false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
