// Package notify fans order lifecycle changes out to email and the event
// stream. Failures are logged and never bubble up to the shopper.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/junaidrashid-git/tavern-api/events"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

type Notifier struct {
	mailer    Mailer
	publisher events.Publisher
}

// New builds a Notifier. A nil mailer disables email; a nil publisher disables events.
func New(mailer Mailer, publisher events.Publisher) *Notifier {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Notifier{mailer: mailer, publisher: publisher}
}

func (n *Notifier) OrderPlaced(ctx context.Context, order *models.Order) {
	logger := logging.FromContext(ctx).With(zap.Uint("order_id", order.ID))

	if err := n.publisher.Publish(ctx, events.NewOrderEvent(events.TypeOrderCreated, order)); err != nil {
		logger.Warn("order_event_publish_failed", zap.Error(err))
	}

	if n.mailer == nil || order.Email == "" {
		return
	}
	subject := fmt.Sprintf("Your Tavern order #%d", order.ID)
	if err := n.mailer.Send(ctx, []string{order.Email}, subject, ConfirmationHTML(order)); err != nil {
		logger.Warn("order_confirmation_email_failed", zap.Error(err))
	}
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	if err := n.publisher.Publish(ctx, events.NewOrderEvent(events.TypeOrderStatusChanged, order)); err != nil {
		logging.FromContext(ctx).Warn("order_event_publish_failed",
			zap.Uint("order_id", order.ID), zap.Error(err))
	}
}

// ConfirmationHTML renders the order confirmation email body.
func ConfirmationHTML(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(order.FirstName))
	fmt.Fprintf(&b, "<p>Thanks for your order #%d.</p><ul>", order.ID)
	for _, item := range order.Items {
		name := item.Product.Name
		if name == "" {
			name = fmt.Sprintf("Product #%d", item.ProductID)
		}
		fmt.Fprintf(&b, "<li>%d × %s: KES %s</li>", item.Quantity, html.EscapeString(name), item.TotalPrice().StringFixed(2))
	}
	fmt.Fprintf(&b, "</ul><p>Total: KES %s</p>", order.TotalAmount.StringFixed(2))
	return b.String()
}
