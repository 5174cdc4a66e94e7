package helpers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gookit/validate"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

const CurrentUserKey = "CurrentUser"

type Errors struct {
	Errors []string `json:"errors"`
}

func (e Errors) Size() int {
	return len(e.Errors)
}

func Vaildate(payload interface{}, err_src *Errors) {
	v := validate.Struct(payload)
	if !v.Validate() {
		for _, errs := range v.Errors.All() {
			for _, err := range errs {
				err_src.Errors = append(err_src.Errors, err)
			}
		}
	}
}

func VaildateMessage(prefix string) map[string]string {
	return validate.MS{
		"uint":            prefix + ".non_integer_{field}",
		"required":        prefix + ".missing_{field}",
		"ValidateOrderBy": prefix + ".invalid_order_by",
		"ValidateSide":    prefix + ".invalid_side",
		"ValidateState":   prefix + ".invalid_state",
	}
}

func ValidateOrderBy(val types.OrderBy) bool {
	return len(val) == 0 || val == types.OrderByAsc || val == types.OrderByDesc
}

func ValidateSide(val types.OrderSide) bool {
	return len(val) == 0 || val == types.SideBuy || val == types.SideSell
}

func GetCurrentUser(c *fiber.Ctx) *models.Member {
	member, _ := c.Locals(CurrentUserKey).(*models.Member)
	return member
}

// StatusOf maps an error kind to the HTTP status returned to the member.
func StatusOf(err error) int {
	switch types.KindOf(err) {
	case types.KindValidation, types.KindRiskRejection, types.KindComplianceRejection, types.KindInsufficientBalance:
		return fiber.StatusUnprocessableEntity
	case types.KindForbidden:
		return fiber.StatusForbidden
	case types.KindNotFound:
		return fiber.StatusNotFound
	case types.KindInvalidState, types.KindConcurrencyConflict:
		return fiber.StatusConflict
	case types.KindTemporarilyUnavailable, types.KindSettlementFailure:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorsOf lists the error code followed by its violation codes.
func ErrorsOf(err error) Errors {
	var typed *types.Error
	if !errors.As(err, &typed) {
		return Errors{Errors: []string{"server.internal_error"}}
	}

	return Errors{Errors: append([]string{typed.Code}, typed.Violations...)}
}

func ResponseError(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		config.Logger.Errorf("[carbonex.api] %s %s failed: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(ErrorsOf(err))
}
