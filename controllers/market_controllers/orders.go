package market_controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/zsmartex/carbonex/controllers/entities"
	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/controllers/queries"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/pipeline"
)

// Pipeline is the part of the order pipeline the member API drives.
type Pipeline interface {
	SubmitOrder(ctx context.Context, memberID int64, intent models.OrderIntent) (*pipeline.OrderResult, error)
	CancelOrder(ctx context.Context, memberID, orderID int64, reason string) (*pipeline.OrderResult, error)
	ModifyOrder(ctx context.Context, memberID, orderID int64, fields models.ModifyFields) (*pipeline.OrderResult, error)
	GetOrder(ctx context.Context, memberID, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter ledger.OrderFilter) ([]*models.Order, error)
	GetTradeHistory(ctx context.Context, filter ledger.TradeFilter) ([]*models.Trade, error)
}

type Handler struct {
	Pipeline Pipeline
}

func NewHandler(p Pipeline) *Handler {
	return &Handler{Pipeline: p}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(helpers.Errors{
		Errors: []string{"authz.invalid_session"},
	})
}

func orderIDParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
			Errors: []string{"market.order.invalid_id"},
		})
	}

	return int64(id), nil
}

// respondResult renders the order behind result, with the trades it made.
func (h *Handler) respondResult(c *fiber.Ctx, status int, memberID int64, result *pipeline.OrderResult) error {
	order, err := h.Pipeline.GetOrder(c.UserContext(), memberID, result.OrderID)
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	entity := entities.OrderToEntity(order)
	entity.TradesCount = len(result.Trades)

	return c.Status(status).JSON(entity)
}

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return unauthorized(c)
	}

	errors := new(helpers.Errors)
	payload := new(helpers.CreateOrderParams)

	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
			Errors: []string{"server.method.invalid_message_body"},
		})
	}

	helpers.Vaildate(payload, errors)
	if errors.Size() > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errors)
	}

	result, err := h.Pipeline.SubmitOrder(c.UserContext(), CurrentUser.ID, payload.ToIntent())
	if err != nil {
		if result == nil {
			return helpers.ResponseError(c, err)
		}

		// rejected orders are persisted; hand back their id with the reasons
		return c.Status(helpers.StatusOf(err)).JSON(fiber.Map{
			"errors": helpers.ErrorsOf(err).Errors,
			"order":  result,
		})
	}

	return h.respondResult(c, fiber.StatusCreated, CurrentUser.ID, result)
}

func (h *Handler) GetOrders(c *fiber.Ctx) error {
	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return unauthorized(c)
	}

	errors := new(helpers.Errors)
	params := new(queries.OrderFilters)
	if err := c.QueryParser(params); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
			Errors: []string{"server.method.invalid_query"},
		})
	}

	helpers.Vaildate(params, errors)
	if errors.Size() > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errors)
	}

	orders, err := h.Pipeline.ListOrders(c.UserContext(), params.ToFilter(CurrentUser.ID))
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	orders_json := make([]entities.OrderEntity, 0, len(orders))
	for _, order := range orders {
		orders_json = append(orders_json, entities.OrderToEntity(order))
	}

	return c.Status(fiber.StatusOK).JSON(orders_json)
}

func (h *Handler) GetOrderByID(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if id == 0 {
		return err
	}

	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return unauthorized(c)
	}

	order, err := h.Pipeline.GetOrder(c.UserContext(), CurrentUser.ID, id)
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(entities.OrderToEntity(order))
}

func (h *Handler) CancelOrderByID(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if id == 0 {
		return err
	}

	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return unauthorized(c)
	}

	params := new(helpers.CancelOrderParams)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(params); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
				Errors: []string{"server.method.invalid_message_body"},
			})
		}
	}

	result, err := h.Pipeline.CancelOrder(c.UserContext(), CurrentUser.ID, id, params.Reason)
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	return h.respondResult(c, fiber.StatusOK, CurrentUser.ID, result)
}

func (h *Handler) UpdateOrder(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if id == 0 {
		return err
	}

	CurrentUser := helpers.GetCurrentUser(c)
	if CurrentUser == nil {
		return unauthorized(c)
	}

	params := new(helpers.UpdateOrderParams)
	if err := c.BodyParser(params); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
			Errors: []string{"server.method.invalid_message_body"},
		})
	}

	result, err := h.Pipeline.ModifyOrder(c.UserContext(), CurrentUser.ID, id, params.ToModifyFields())
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	return h.respondResult(c, fiber.StatusOK, CurrentUser.ID, result)
}
