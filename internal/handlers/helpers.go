package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// freeTextPolicy strips all markup from operator and customer supplied text
// before it reaches storage.
var freeTextPolicy = bluemonday.StrictPolicy()

func sanitizeFreeText(value string) string {
	return strings.TrimSpace(freeTextPolicy.Sanitize(value))
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = 64 * 1024
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func decodeJSONBody(r *http.Request, limit int64, dst any) error {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// parseTimeParam accepts RFC3339 timestamps and bare dates.
func parseTimeParam(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func parsePageSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultPageSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("page_size must be an integer")
	}
	switch {
	case size <= 0:
		return defaultPageSize, nil
	case size > maxPageSize:
		return maxPageSize, nil
	default:
		return size, nil
	}
}

// Response payloads -----------------------------------------------------------

type addressPayload struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type customerPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type lineItemPayload struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url,omitempty"`
}

type totalsPayload struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Discount float64 `json:"discount"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

type trackingPayload struct {
	Carrier           string `json:"carrier"`
	Code              string `json:"code,omitempty"`
	URL               string `json:"url,omitempty"`
	ServiceTier       string `json:"service_tier,omitempty"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
}

type refundPayload struct {
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason,omitempty"`
	Method      string  `json:"method,omitempty"`
	ProviderRef string  `json:"provider_ref,omitempty"`
	At          string  `json:"at"`
}

type historyEntryPayload struct {
	Status    string            `json:"status"`
	At        string            `json:"at"`
	Note      string            `json:"note,omitempty"`
	UpdatedBy string            `json:"updated_by,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type notePayload struct {
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
	CreatedAt string `json:"created_at"`
}

type orderSummaryPayload struct {
	ID            string  `json:"id"`
	Number        string  `json:"number"`
	Status        string  `json:"status"`
	Priority      string  `json:"priority,omitempty"`
	CustomerID    string  `json:"customer_id"`
	CustomerEmail string  `json:"customer_email,omitempty"`
	Total         float64 `json:"total"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

type orderPayload struct {
	ID            string                `json:"id"`
	Number        string                `json:"number"`
	Customer      customerPayload       `json:"customer"`
	Items         []lineItemPayload     `json:"items"`
	Totals        totalsPayload         `json:"totals"`
	ShippingAddr  *addressPayload       `json:"shipping_address,omitempty"`
	PaymentMethod string                `json:"payment_method,omitempty"`
	PaymentRef    string                `json:"payment_ref,omitempty"`
	Status        string                `json:"status"`
	Priority      string                `json:"priority,omitempty"`
	Tags          []string              `json:"tags,omitempty"`
	Notes         []notePayload         `json:"notes,omitempty"`
	Tracking      *trackingPayload      `json:"tracking,omitempty"`
	Refund        *refundPayload        `json:"refund,omitempty"`
	StatusHistory []historyEntryPayload `json:"status_history"`
	DeclineReason string                `json:"decline_reason,omitempty"`
	CancelReason  string                `json:"cancel_reason,omitempty"`
	ApprovedAt    string                `json:"approved_at,omitempty"`
	ApprovedBy    string                `json:"approved_by,omitempty"`
	PackedAt      string                `json:"packed_at,omitempty"`
	ShippedAt     string                `json:"shipped_at,omitempty"`
	DeliveredAt   string                `json:"delivered_at,omitempty"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at,omitempty"`
}

type customerOrderPayload struct {
	OrderID   string           `json:"order_id"`
	Number    string           `json:"number"`
	Status    string           `json:"status"`
	Total     float64          `json:"total"`
	ItemCount int              `json:"item_count"`
	Tracking  *trackingPayload `json:"tracking,omitempty"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at,omitempty"`
}

func buildTrackingPayload(tracking *domain.Tracking) *trackingPayload {
	if tracking == nil {
		return nil
	}
	return &trackingPayload{
		Carrier:           tracking.Carrier,
		Code:              tracking.Code,
		URL:               tracking.URL,
		ServiceTier:       tracking.ServiceTier,
		EstimatedDelivery: formatTimePtr(tracking.EstimatedDelivery),
	}
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:            order.ID,
		Number:        order.Number,
		Status:        string(order.Status),
		Priority:      string(order.Priority),
		CustomerID:    order.Customer.ID,
		CustomerEmail: order.Customer.Email,
		Total:         order.Totals.Total,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:     order.ID,
		Number: order.Number,
		Customer: customerPayload{
			ID:    order.Customer.ID,
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		Items: make([]lineItemPayload, 0, len(order.Items)),
		Totals: totalsPayload{
			Subtotal: order.Totals.Subtotal,
			Tax:      order.Totals.Tax,
			Discount: order.Totals.Discount,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		PaymentMethod: order.PaymentMethod,
		PaymentRef:    order.PaymentRef,
		Status:        string(order.Status),
		Priority:      string(order.Priority),
		Tags:          order.Tags,
		Tracking:      buildTrackingPayload(order.Tracking),
		StatusHistory: make([]historyEntryPayload, 0, len(order.StatusHistory)),
		DeclineReason: order.DeclineReason,
		CancelReason:  order.CancelReason,
		ApprovedAt:    formatTimePtr(order.ApprovedAt),
		ApprovedBy:    order.ApprovedBy,
		PackedAt:      formatTimePtr(order.PackedAt),
		ShippedAt:     formatTimePtr(order.ShippedAt),
		DeliveredAt:   formatTimePtr(order.DeliveredAt),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, lineItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}

	addr := order.ShippingAddr
	if addr != (services.Address{}) {
		payload.ShippingAddr = &addressPayload{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}

	for _, note := range order.Notes {
		payload.Notes = append(payload.Notes, notePayload{
			Text:      note.Text,
			Author:    note.Author,
			CreatedAt: formatTime(note.CreatedAt),
		})
	}

	if order.Refund != nil {
		payload.Refund = &refundPayload{
			Amount:      order.Refund.Amount,
			Reason:      order.Refund.Reason,
			Method:      order.Refund.Method,
			ProviderRef: order.Refund.ProviderRef,
			At:          formatTime(order.Refund.At),
		}
	}

	for _, entry := range order.StatusHistory {
		payload.StatusHistory = append(payload.StatusHistory, historyEntryPayload{
			Status:    string(entry.Status),
			At:        formatTime(entry.At),
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			Metadata:  entry.Metadata,
		})
	}

	return payload
}

func buildCustomerOrderPayload(copy services.CustomerOrder) customerOrderPayload {
	return customerOrderPayload{
		OrderID:   copy.OrderID,
		Number:    copy.Number,
		Status:    string(copy.Status),
		Total:     copy.Total,
		ItemCount: copy.ItemCount,
		Tracking:  buildTrackingPayload(copy.Tracking),
		CreatedAt: formatTime(copy.CreatedAt),
		UpdatedAt: formatTime(copy.UpdatedAt),
	}
}

// Error mapping ---------------------------------------------------------------

func orderErrorResponse(err error) (string, string, int) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		return "invalid_request", err.Error(), http.StatusBadRequest
	case errors.Is(err, services.ErrOrderInvalidStatus):
		return "invalid_status", err.Error(), http.StatusBadRequest
	case errors.Is(err, services.ErrOrderNotFound):
		return "order_not_found", "order not found", http.StatusNotFound
	case errors.Is(err, services.ErrOrderInvalidTransition):
		return "invalid_transition", err.Error(), http.StatusConflict
	case errors.Is(err, services.ErrOrderConflict):
		return "order_conflict", err.Error(), http.StatusConflict
	case errors.Is(err, services.ErrOrderStore):
		return "order_store_unavailable", "order store unavailable", http.StatusServiceUnavailable
	default:
		return "order_error", "failed to process order request", http.StatusInternalServerError
	}
}
