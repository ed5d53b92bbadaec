package catalog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-analytics-service/internal/domain"
	"catalog-analytics-service/internal/store"
)

// StockUpdate sets the stock of one product.
type StockUpdate struct {
	ID    int64  `json:"id" validate:"required,gt=0"`
	Stock *int64 `json:"stock" validate:"required,gte=0"`
}

// BulkResult is the outcome of an applied batch, in caller order.
type BulkResult struct {
	BatchID  string           `json:"batch_id"`
	Products []domain.Product `json:"products"`
}

// BulkUpdateStock applies updates atomically. Every item is validated first;
// the batch then runs in one transaction in caller order and a missing product
// rolls back every earlier update in the batch.
func (s *Service) BulkUpdateStock(ctx context.Context, updates []StockUpdate) (*BulkResult, error) {
	for i := range updates {
		if err := s.checkStruct(fmt.Sprintf("updates[%d].", i), &updates[i]); err != nil {
			return nil, err
		}
	}

	batchID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"batch_id": batchID, "items": len(updates)})
	result := &BulkResult{BatchID: batchID, Products: make([]domain.Product, 0, len(updates))}
	if len(updates) == 0 {
		return result, nil
	}

	err := s.store.WithinTx(ctx, store.TxOptions{}, func(c store.Catalog) error {
		for _, u := range updates {
			p, err := c.SetStock(ctx, u.ID, *u.Stock)
			if err != nil {
				if errors.Is(err, store.ErrProductNotFound) {
					return productNotFound(u.ID)
				}
				if errors.Is(err, store.ErrConstraintViolation) {
					return invalid("stock", "product %d: %v", u.ID, err)
				}
				return fmt.Errorf("bulk update product %d: %w", u.ID, err)
			}
			result.Products = append(result.Products, *p)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("bulk stock update rolled back")
		return nil, err
	}

	s.invalidate(ctx)
	log.Info("bulk stock update applied")
	return result, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs struct tag validation and reports the first failing field.
func (s *Service) checkStruct(prefix string, v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid(strings.TrimSuffix(prefix, "."), "%v", err)
	}
	fe := verrs[0]
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = "must be greater than " + fe.Param()
	case "gte":
		reason = "must be at least " + fe.Param()
	default:
		reason = "failed " + fe.Tag() + " check"
	}
	return invalid(prefix+fe.Field(), "%s", reason)
}
