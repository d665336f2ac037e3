package service

import (
	"context"
	"errors"
	"time"

	"github.com/achlys/whimsical-backend/internal/app/model"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderStatus = errors.New("invalid order status")
)

const confirmTimeout = 10 * time.Second

type OrderService interface {
	ListOrders(ctx context.Context) ([]model.OrderRecord, error)
	GetOrder(ctx context.Context, id string) (*model.OrderRecord, error)
	GetOrdersByEmail(ctx context.Context, email string) ([]model.OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*PendingStatus, error)
	DeleteOrder(ctx context.Context, id string) error
}

type orderService struct {
	orderRepo repository.OrderRepository
	board     *OrderBoard
}

func NewOrderService(orderRepo repository.OrderRepository, board *OrderBoard) OrderService {
	if board == nil {
		board = NewOrderBoard()
	}
	return &orderService{orderRepo: orderRepo, board: board}
}

// ListOrders returns every order, newest first, with pending status changes applied.
func (s *orderService) ListOrders(ctx context.Context) ([]model.OrderRecord, error) {
	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to list orders", err)
		return nil, err
	}
	s.board.Overlay(orders)

	logger.Info("Orders listed", map[string]interface{}{
		"count": len(orders),
	})
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*model.OrderRecord, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Order not found", map[string]interface{}{
				"order_id": id,
			})
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if status, ok := s.board.Status(id); ok {
		order.Status = status
	}
	return order, nil
}

func (s *orderService) GetOrdersByEmail(ctx context.Context, email string) ([]model.OrderRecord, error) {
	orders, err := s.orderRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	s.board.Overlay(orders)
	return orders, nil
}

// UpdateOrderStatus shows the new status right away and writes it in the
// background. A failed write rolls the order back to its previous status.
func (s *orderService) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*PendingStatus, error) {
	if !status.Valid() {
		logger.Warn("Rejected invalid order status", map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return nil, ErrInvalidOrderStatus
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	pending := s.board.Apply(id, order.Status, status)
	logger.Info("Order status applied optimistically", map[string]interface{}{
		"order_id": id,
		"from":     pending.From,
		"to":       pending.To,
	})

	go s.confirm(pending)
	return pending, nil
}

func (s *orderService) confirm(p *PendingStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
	defer cancel()

	p.waitPrevious(ctx)
	err := s.orderRepo.UpdateStatus(ctx, p.OrderID, p.To)
	if err != nil {
		logger.Error("Order status update failed, rolling back", err, map[string]interface{}{
			"order_id": p.OrderID,
			"from":     p.From,
			"to":       p.To,
		})
	} else {
		logger.Info("Order status confirmed", map[string]interface{}{
			"order_id": p.OrderID,
			"status":   p.To,
		})
	}
	s.board.Confirm(p, err)
}

func (s *orderService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		logger.Error("Failed to delete order", err, map[string]interface{}{
			"order_id": id,
		})
		return err
	}
	s.board.Forget(id)

	logger.Info("Order deleted", map[string]interface{}{
		"order_id": id,
	})
	return nil
}
