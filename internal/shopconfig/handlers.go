package shopconfig

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/common"
)

const (
	msgFetched = "Data Fetch successfully"
	msgUpdated = "Data updated successfully"

	maxFormMemory = 32 << 10
)

// Handler exposes configuration endpoints over HTTP.
type Handler struct {
	service   *Service
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, validator: NewValidator(), logger: logger}
}

// AdminGet returns the configuration of the authenticated shop.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	shop, ok := common.Shop(r.Context())
	if !ok {
		common.WriteEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	h.writeConfiguration(w, r, shop)
}

// AdminSave upserts the configuration of the authenticated shop from a form post.
func (h *Handler) AdminSave(w http.ResponseWriter, r *http.Request) {
	shop, ok := common.Shop(r.Context())
	if !ok {
		common.WriteEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		common.WriteEnvelope(w, http.StatusBadRequest, msgFillAllFields, nil)
		return
	}
	form := SaveForm{
		UnitsOfMeasurement:      r.PostFormValue("UnitsOfMeasurement"),
		UnitsOfMeasurementPrice: r.PostFormValue("UnitsOfMeasurementPrice"),
	}
	unit, price, err := form.Parse(h.validator)
	if err != nil {
		common.WriteEnvelopeError(w, err)
		return
	}
	saved, err := h.service.Save(r.Context(), shop, unit, price)
	if err != nil {
		h.logError(r, shop, err, "save configuration")
		common.WriteEnvelopeError(w, err)
		return
	}
	common.WriteEnvelope(w, http.StatusOK, msgUpdated, saved)
}

// PublicGet serves the configuration of the shop named in the query string.
func (h *Handler) PublicGet(w http.ResponseWriter, r *http.Request) {
	shop := normaliseShop(r.URL.Query().Get("shop"))
	if shop == "" {
		common.WriteEnvelope(w, http.StatusBadRequest, "shop is required", nil)
		return
	}
	h.writeConfiguration(w, r, shop)
}

func (h *Handler) writeConfiguration(w http.ResponseWriter, r *http.Request, shop string) {
	cfg, found, err := h.service.Get(r.Context(), shop)
	if err != nil {
		h.logError(r, shop, err, "load configuration")
		common.WriteEnvelopeError(w, err)
		return
	}
	if !found {
		common.WriteEnvelope(w, http.StatusOK, msgFetched, nil)
		return
	}
	common.WriteEnvelope(w, http.StatusOK, msgFetched, cfg)
}

func (h *Handler) logError(r *http.Request, shop string, err error, msg string) {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		return
	}
	h.logger.Error().Err(err).Str("shop", shop).Str("path", r.URL.Path).Msg(msg)
}
