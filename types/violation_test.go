package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViolationsBlocking(t *testing.T) {
	high := Violation{Code: "h", Severity: SeverityHigh}
	medium := Violation{Code: "m", Severity: SeverityMedium}
	critical := Violation{Code: "c", Severity: SeverityCritical}

	assert.False(t, Violations{}.Blocking())
	assert.False(t, Violations{high, medium, medium}.Blocking())
	assert.True(t, Violations{high, high}.Blocking())
	assert.True(t, Violations{critical}.Blocking())

	assert.Equal(t, 60, Violations{high, medium, medium}.Score())
	assert.Equal(t, 100, Violations{critical, critical, high}.Score())
	assert.Equal(t, []string{"h", "m"}, Violations{high, medium}.Codes())
	assert.True(t, Violations{high}.Has("h"))
}

func TestErrorMatching(t *testing.T) {
	notFound := NewError(KindNotFound, "record.not_found", "record not found")
	err := fmt.Errorf("loading order: %w", notFound)

	assert.True(t, errors.Is(err, notFound))
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNotFound, Code: "other"}))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "record.not_found", CodeOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	rejected := NewError(KindRiskRejection, "risk.order.rejected", "").WithViolations("a", "b")
	assert.Equal(t, "risk_rejection: risk.order.rejected [a, b]", rejected.Error())
}
