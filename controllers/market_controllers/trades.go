package market_controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/zsmartex/carbonex/controllers/entities"
	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/controllers/queries"
)

func (h *Handler) GetTrades(c *fiber.Ctx) error {
	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return unauthorized(c)
	}

	var errors = new(helpers.Errors)
	params := new(queries.TradeFilters)

	if err := c.QueryParser(params); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
			Errors: []string{"server.method.invalid_query"},
		})
	}

	helpers.Vaildate(params, errors)
	if errors.Size() > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errors)
	}

	filter := params.ToFilter(CurrentUser.ID)
	trades, err := h.Pipeline.GetTradeHistory(c.UserContext(), filter)
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	trades_json := make([]entities.TradeEntity, 0, len(trades))
	for _, trade := range trades {
		trades_json = append(trades_json, entities.TradeForMember(trade, CurrentUser.ID))
	}

	page := filter.Page
	if page == 0 {
		page = 1
	}
	c.Response().Header.Add("page", strconv.Itoa(page))
	c.Response().Header.Add("per-page", strconv.Itoa(filter.Limit))

	return c.Status(fiber.StatusOK).JSON(trades_json)
}
