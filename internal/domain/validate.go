package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord indica un trade o alerta mal formado. El registro se descarta
// sin abortar el batch que lo contiene.
var ErrInvalidRecord = errors.New("invalid record")

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateRecord(kind string, v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s.%s failed %q", ErrInvalidRecord, kind, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, kind, err)
	}
	return nil
}
