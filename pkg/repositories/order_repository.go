package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-engine/pkg/database"
	"github.com/dineflow/dineflow-engine/pkg/models"
)

// OrderRepository provides read access to historical order data.
type OrderRepository interface {
	// ListCompletedOrderBaskets returns every non-cancelled order of the
	// restaurant reduced to its distinct menu item ids.
	ListCompletedOrderBaskets(ctx context.Context, restaurantID uuid.UUID) ([]models.OrderBasket, error)
}

type orderRepository struct{}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository() OrderRepository {
	return &orderRepository{}
}

var _ OrderRepository = (*orderRepository)(nil)

func (r *orderRepository) ListCompletedOrderBaskets(ctx context.Context, restaurantID uuid.UUID) ([]models.OrderBasket, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no querier in context")
	}

	query := `
		SELECT oi.order_id, oi.menu_item_id
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.restaurant_id = $1
		  AND o.status <> $2
		ORDER BY oi.order_id`

	rows, err := q.Query(ctx, query, restaurantID, models.OrderStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query order baskets: %w", err)
	}
	defer rows.Close()

	// Group lines by order id, deduplicating repeated items within an order.
	grouped := make(map[uuid.UUID]map[uuid.UUID]struct{})
	var orderIDs []uuid.UUID

	for rows.Next() {
		var orderID, itemID uuid.UUID
		if err := rows.Scan(&orderID, &itemID); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		set, exists := grouped[orderID]
		if !exists {
			set = make(map[uuid.UUID]struct{})
			grouped[orderID] = set
			orderIDs = append(orderIDs, orderID)
		}
		set[itemID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}

	baskets := make([]models.OrderBasket, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		set := grouped[orderID]
		items := make([]uuid.UUID, 0, len(set))
		for itemID := range set {
			items = append(items, itemID)
		}
		baskets = append(baskets, models.OrderBasket{OrderID: orderID, ItemIDs: items})
	}

	return baskets, nil
}
