package vendors

import (
	"fmt"
	"strings"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

func (s *Service) validate(v Vendor) error {
	if strings.TrimSpace(v.Code) == "" {
		return fmt.Errorf("%w: vendor code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: vendor name is required", shared.ErrValidation)
	}
	return nil
}
