package paymentControllers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	orderControllers "github.com/junaidrashid-git/tavern-api/controllers/order"
	"github.com/junaidrashid-git/tavern-api/external/intasend"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/metrics"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/junaidrashid-git/tavern-api/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxWebhookBody = 1 << 20

type OutcomeKind int

const (
	OutcomeParseError OutcomeKind = iota
	OutcomeIgnored
	OutcomeOrderNotFound
	OutcomeFailed
	OutcomeApplied
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeParseError:
		return "parse_error"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeOrderNotFound:
		return "order_not_found"
	case OutcomeFailed:
		return "failed"
	case OutcomeApplied:
		return "applied"
	default:
		return "unknown"
	}
}

// Outcome is what a webhook delivery did. Order is set only when Applied.
type Outcome struct {
	Kind    OutcomeKind
	Reason  string
	APIRef  string
	State   string
	OrderID uint
	Status  models.OrderStatus
	Order   *models.Order
	Err     error
}

// HTTPStatus is the answer the gateway gets. Only unreadable bodies and our
// own storage failures are reported as errors; everything else is
// acknowledged so the gateway stops retrying.
func (o Outcome) HTTPStatus() int {
	switch o.Kind {
	case OutcomeParseError:
		return http.StatusBadRequest
	case OutcomeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (o Outcome) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("outcome", o.Kind.String()),
		zap.String("api_ref", o.APIRef),
		zap.String("state", o.State),
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}
	if o.OrderID != 0 {
		fields = append(fields, zap.Uint("order_id", o.OrderID))
	}
	if o.Status != "" {
		fields = append(fields, zap.String("status", string(o.Status)))
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	return fields
}

type WebhookPayload struct {
	APIRef    string `json:"api_ref"`
	State     string `json:"state"`
	InvoiceID string `json:"invoice_id"`
	Challenge string `json:"challenge"`
}

// StatusForState maps a gateway state to the order status it implies.
func StatusForState(state string) (models.OrderStatus, bool) {
	switch state {
	case intasend.StateComplete:
		return models.OrderStatusPaid, true
	case intasend.StateFailed:
		return models.OrderStatusPaymentFailed, true
	default:
		return "", false
	}
}

// ProcessWebhook applies one gateway callback. When challenge is non-empty
// the payload must echo it. Repeated deliveries are harmless; the last one
// processed decides the status.
func ProcessWebhook(ctx context.Context, db *gorm.DB, body []byte, challenge string) Outcome {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Outcome{Kind: OutcomeParseError, Err: err}
	}
	out := Outcome{APIRef: payload.APIRef, State: payload.State}

	if challenge != "" && subtle.ConstantTimeCompare([]byte(payload.Challenge), []byte(challenge)) != 1 {
		out.Kind, out.Reason = OutcomeIgnored, "challenge_mismatch"
		return out
	}

	orderID, ok := ParseOrderReference(payload.APIRef)
	if !ok {
		out.Kind, out.Reason = OutcomeIgnored, "unrecognised_reference"
		return out
	}
	out.OrderID = orderID

	status, ok := StatusForState(payload.State)
	if !ok {
		out.Kind, out.Reason = OutcomeIgnored, "unhandled_state"
		return out
	}

	order, err := orderControllers.SetStatus(ctx, db, orderID, status)
	switch {
	case errors.Is(err, orderControllers.ErrOrderNotFound):
		out.Kind = OutcomeOrderNotFound
	case err != nil:
		out.Kind, out.Err = OutcomeFailed, err
	default:
		out.Kind, out.Status, out.Order = OutcomeApplied, status, order
	}
	return out
}

// ANY /intasend/webhook/
func Webhook(db *gorm.DB, challenge string, hub *orderControllers.StatusHub, notifier *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Header("Allow", http.MethodPost)
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
			return
		}

		var out Outcome
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			out = Outcome{Kind: OutcomeParseError, Err: err}
		} else {
			out = ProcessWebhook(c.Request.Context(), db, body, challenge)
		}

		metrics.WebhookOutcomes.WithLabelValues(out.Kind.String()).Inc()
		logger := logging.FromGin(c)
		if out.Kind == OutcomeFailed {
			logger.Error("intasend_webhook", out.fields()...)
		} else {
			logger.Info("intasend_webhook", out.fields()...)
		}

		if out.Kind == OutcomeApplied {
			if hub != nil {
				hub.Broadcast(out.OrderID, out.Status)
			}
			if notifier != nil {
				notifier.OrderStatusChanged(c.Request.Context(), out.Order)
			}
		}

		c.JSON(out.HTTPStatus(), gin.H{"outcome": out.Kind.String()})
	}
}
