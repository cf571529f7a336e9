package orderControllers

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatusUpdate is pushed to payment-wait pages.
type StatusUpdate struct {
	OrderID uint               `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

// watcher is one socket following an order. gorilla/websocket allows a single
// writer per conn, so writes go through mu.
type watcher struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *watcher) send(update StatusUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(update)
}

// StatusHub fans order status changes out to sockets watching that order.
// mu guards the registry only; socket writes happen outside it.
type StatusHub struct {
	mu      sync.Mutex
	clients map[uint]map[*watcher]struct{}
}

func NewStatusHub() *StatusHub {
	return &StatusHub{clients: make(map[uint]map[*watcher]struct{})}
}

// subscribe registers the socket and sends the current status. The watcher's
// write lock is held across both so a broadcast cannot overtake the first frame.
func (h *StatusHub) subscribe(conn *websocket.Conn, current StatusUpdate) (*watcher, error) {
	w := &watcher{conn: conn}
	w.mu.Lock()

	h.mu.Lock()
	if h.clients[current.OrderID] == nil {
		h.clients[current.OrderID] = make(map[*watcher]struct{})
	}
	h.clients[current.OrderID][w] = struct{}{}
	h.mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(current)
	w.mu.Unlock()
	if err != nil {
		h.unsubscribe(current.OrderID, w)
		return nil, err
	}
	return w, nil
}

func (h *StatusHub) unsubscribe(orderID uint, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients[orderID], w)
	if len(h.clients[orderID]) == 0 {
		delete(h.clients, orderID)
	}
}

// Watchers reports how many sockets follow the order.
func (h *StatusHub) Watchers(orderID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[orderID])
}

func (h *StatusHub) watchersOf(orderID uint) []*watcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*watcher, 0, len(h.clients[orderID]))
	for w := range h.clients[orderID] {
		out = append(out, w)
	}
	return out
}

// Broadcast pushes the status to every watcher of the order. Sockets that
// fail to take the write are closed and dropped.
func (h *StatusHub) Broadcast(orderID uint, status models.OrderStatus) {
	update := StatusUpdate{OrderID: orderID, Status: status}
	for _, w := range h.watchersOf(orderID) {
		if err := w.send(update); err != nil {
			w.conn.Close()
			h.unsubscribe(orderID, w)
		}
	}
}

// GET /checkout/payment-wait/:order_id/ws
func OrderStatusSocket(db *gorm.DB, hub *StatusHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParseOrderID(c.Param("order_id"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
			return
		}
		order, err := LoadOrder(c.Request.Context(), db, id)
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("order_fetch_failed", zap.Uint("order_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		w, err := hub.subscribe(conn, StatusUpdate{OrderID: order.ID, Status: order.Status})
		if err != nil {
			return
		}
		defer hub.unsubscribe(order.ID, w)

		// Clients never send anything useful; reading detects the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
