package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/db"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"

	"gorm.io/gorm"
)

// SideInfo rides along a mutation into AddOrUpdateOrder. SuppressForward
// marks annotation-only updates that must not drive the next pipeline step.
type SideInfo struct {
	SuppressForward bool
	Note            string
}

// Driver is the single mutation entrypoint of the owning order actor.
// Watchers and reminders re-enter the pipeline only through it.
type Driver interface {
	AddOrUpdateOrder(ctx context.Context, order *types.Order, side *SideInfo) error
	Dispatch(ctx context.Context, orderID string)
}

var (
	driver      Driver
	driverMutex sync.RWMutex
)

func RegisterDriver(d Driver) {
	driverMutex.Lock()
	defer driverMutex.Unlock()
	driver = d
}

func GetDriver() (Driver, error) {
	driverMutex.RLock()
	defer driverMutex.RUnlock()
	if driver == nil {
		return nil, fmt.Errorf("invalid order driver")
	}
	return driver, nil
}

func GetOrder(ctx context.Context, id string) (*types.Order, error) {
	cli, err := db.Client()
	if err != nil {
		return nil, err
	}
	info := &types.Order{}
	if err := cli.WithContext(ctx).Where("id = ?", id).First(info).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

func CreateOrder(ctx context.Context, order *types.Order) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	now := uint32(time.Now().Unix())
	order.CreateTime = now
	order.LastModifyTime = now
	return cli.WithContext(ctx).Create(order).Error
}

func checkTxIDReassign(stored, next *types.TransferLeg) error {
	if stored.TxID == "" || stored.TxID == next.TxID {
		return nil
	}
	switch stored.Status {
	case types.TransferStatusConfirmed:
		fallthrough //nolint
	case types.TransferStatusFailed:
		return nil
	}
	return fmt.Errorf("invalid txid reassign %v -> %v", stored.TxID, next.TxID)
}

// UpdateOrder persists the mutated order and appends a status-flow audit
// entry in one transaction. A leg TxID may only be set once per attempt.
func UpdateOrder(ctx context.Context, order *types.Order, fromStatus types.OrderStatus, note string) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	return cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored := &types.Order{}
		if err := tx.Where("id = ?", order.ID).First(stored).Error; err != nil {
			return err
		}
		if err := checkTxIDReassign(&stored.FromTransfer, &order.FromTransfer); err != nil {
			return err
		}
		if err := checkTxIDReassign(&stored.ToTransfer, &order.ToTransfer); err != nil {
			return err
		}
		order.LastModifyTime = uint32(time.Now().Unix())
		if err := tx.Save(order).Error; err != nil {
			return err
		}
		if fromStatus == order.Status {
			return nil
		}
		return tx.Create(&types.StatusFlow{
			OrderID:    order.ID,
			FromStatus: fromStatus,
			ToStatus:   order.Status,
			Note:       note,
			CreatedAt:  order.LastModifyTime,
		}).Error
	})
}

func GetOrdersByStatus(ctx context.Context, status types.OrderStatus, offset, limit int32) ([]*types.Order, error) {
	cli, err := db.Client()
	if err != nil {
		return nil, err
	}
	infos := []*types.Order{}
	if err := cli.WithContext(ctx).
		Where("status = ?", status).
		Order("create_time asc").
		Offset(int(offset)).
		Limit(int(limit)).
		Find(&infos).Error; err != nil {
		return nil, err
	}
	return infos, nil
}

// GetStaleOrders lists non-terminal orders untouched since the given time.
func GetStaleOrders(ctx context.Context, before uint32, offset, limit int32) ([]*types.Order, error) {
	cli, err := db.Client()
	if err != nil {
		return nil, err
	}
	terminals := []types.OrderStatus{
		types.OrderStatusFinish,
		types.OrderStatusFailed,
		types.OrderStatusExpired,
		types.OrderStatusToTransferFailed,
	}
	infos := []*types.Order{}
	if err := cli.WithContext(ctx).
		Where("status not in ?", terminals).
		Where("last_modify_time < ?", before).
		Order("last_modify_time asc").
		Offset(int(offset)).
		Limit(int(limit)).
		Find(&infos).Error; err != nil {
		return nil, err
	}
	return infos, nil
}

func GetStatusFlows(ctx context.Context, orderID string) ([]*types.StatusFlow, error) {
	cli, err := db.Client()
	if err != nil {
		return nil, err
	}
	infos := []*types.StatusFlow{}
	if err := cli.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&infos).Error; err != nil {
		return nil, err
	}
	return infos, nil
}
