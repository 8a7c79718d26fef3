package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/export"
	"github.com/Desteles/deli-pwa-app/internal/service"
)

// DeliveryDTO is the JSON view of a delivery.
type DeliveryDTO struct {
	ID              int64      `json:"id"`
	Supplier        string     `json:"supplier"`
	Payer           string     `json:"payer"`
	InvoiceNumber   string     `json:"invoice_number"`
	PickupAddress   *string    `json:"pickup_address"`
	DeliveryAddress *string    `json:"delivery_address"`
	CargoInfo       *string    `json:"cargo_info"`
	AuthorName      string     `json:"author_name"`
	DriverID        *int64     `json:"driver_id"`
	DriverName      *string    `json:"driver_name"`
	Status          string     `json:"status"`
	WorkStartedAt   *time.Time `json:"work_started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toDTO(r *domain.DeliveryRecord) DeliveryDTO {
	return DeliveryDTO{
		ID:              r.ID,
		Supplier:        r.Supplier,
		Payer:           r.Payer,
		InvoiceNumber:   r.InvoiceNumber,
		PickupAddress:   r.PickupAddress,
		DeliveryAddress: r.DeliveryAddress,
		CargoInfo:       r.CargoInfo,
		AuthorName:      r.AuthorName,
		DriverID:        r.DriverID,
		DriverName:      r.DriverName,
		Status:          string(r.Status),
		WorkStartedAt:   r.WorkStartedAt,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
	}
}

// DeliveriesHandler serves read-only delivery queries.
type DeliveriesHandler struct {
	svc    service.DispatchService
	loc    *time.Location
	logger *zap.Logger
}

func NewDeliveriesHandler(svc service.DispatchService, loc *time.Location, logger *zap.Logger) *DeliveriesHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DeliveriesHandler{svc: svc, loc: loc, logger: logger}
}

// List handles GET /api/v1/deliveries[?status=..][&driver_id=..].
func (h *DeliveriesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		recs []*domain.DeliveryRecord
		err  error
	)
	switch {
	case q.Get("driver_id") != "":
		driverID, ok := parseInt64(q.Get("driver_id"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, Fail("invalid driver_id"))
			return
		}
		recs, err = h.svc.ActiveForDriver(r.Context(), driverID)
	case q.Get("status") != "":
		status, perr := domain.ParseStatus(q.Get("status"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, Fail(perr.Error()))
			return
		}
		recs, err = h.svc.ListByStatus(r.Context(), status)
	default:
		recs, err = h.svc.AllRecords(r.Context())
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	items := make([]DeliveryDTO, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toDTO(rec))
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// Get handles GET /api/v1/deliveries/{id}.
func (h *DeliveriesHandler) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseInt64(rawID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, Fail("invalid id"))
		return
	}
	rec, err := h.svc.GetDelivery(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toDTO(rec)))
}

// Export handles GET /api/v1/deliveries/export[?driver_id=..].
func (h *DeliveriesHandler) Export(w http.ResponseWriter, r *http.Request) {
	var (
		data     []byte
		fileName string
		err      error
	)
	if raw := r.URL.Query().Get("driver_id"); raw != "" {
		driverID, ok := parseInt64(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, Fail("invalid driver_id"))
			return
		}
		recs, lerr := h.svc.DriverRecords(r.Context(), driverID)
		if lerr != nil {
			h.fail(w, lerr)
			return
		}
		data, err = export.DriverWorkbook(recs, h.loc)
		fileName = "driver_" + strconv.FormatInt(driverID, 10) + ".xlsx"
	} else {
		recs, lerr := h.svc.AllRecords(r.Context())
		if lerr != nil {
			h.fail(w, lerr)
			return
		}
		data, err = export.ManagerWorkbook(recs, h.loc)
		fileName = "deliveries.xlsx"
	}
	if err != nil {
		h.logger.Error("Failed to render workbook", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to render workbook"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *DeliveriesHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail("delivery not found"))
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.logger.Error("Store unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail("store unavailable"))
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
