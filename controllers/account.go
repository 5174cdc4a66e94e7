package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
)

type Accounts struct {
	Store ledger.Reader
}

func NewAccounts(store ledger.Reader) *Accounts {
	return &Accounts{Store: store}
}

// GetAccount returns the member's cash account; members that never traded
// get an empty one.
func (a *Accounts) GetAccount(c *fiber.Ctx) error {
	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(helpers.Errors{
			Errors: []string{"authz.invalid_session"},
		})
	}

	account, err := a.Store.FindAccount(c.UserContext(), CurrentUser.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		account = &models.Account{MemberID: CurrentUser.ID}
	} else if err != nil {
		return helpers.ResponseError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(account)
}

func (a *Accounts) GetHoldings(c *fiber.Ctx) error {
	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(helpers.Errors{
			Errors: []string{"authz.invalid_session"},
		})
	}

	holdings, err := a.Store.ListHoldings(c.UserContext(), CurrentUser.ID)
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	if holdings == nil {
		holdings = []*models.PortfolioHolding{}
	}

	return c.Status(fiber.StatusOK).JSON(holdings)
}
