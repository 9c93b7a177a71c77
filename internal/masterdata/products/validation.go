package products

import (
	"fmt"
	"strings"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: product price cannot be negative", shared.ErrValidation)
	}
	return nil
}
