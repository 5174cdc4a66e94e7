package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/zsmartex/carbonex/controllers/entities"
	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/controllers/queries"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/services/depth_service"
)

type PublicPipeline interface {
	GetOrderBookSnapshot(instrument models.Instrument, limit int) *matching.Snapshot
	GetTradeHistory(ctx context.Context, filter ledger.TradeFilter) ([]*models.Trade, error)
}

type Public struct {
	Pipeline PublicPipeline
}

func NewPublic(p PublicPipeline) *Public {
	return &Public{Pipeline: p}
}

func GetTimestamp(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(time.Now().UTC())
}

func (p *Public) GetOrderBook(c *fiber.Ctx) error {
	var errs = new(helpers.Errors)

	params := new(queries.DepthQuery)
	if err := c.QueryParser(params); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
			Errors: []string{"server.method.invalid_query"},
		})
	}

	helpers.Vaildate(params, errs)
	if errs.Size() > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errs)
	}

	if params.Limit == 0 {
		params.Limit = 100
	}

	snapshot := p.Pipeline.GetOrderBookSnapshot(params.Instrument(), params.Limit)

	return c.Status(fiber.StatusOK).JSON(depth_service.FromSnapshot(snapshot))
}

func (p *Public) GetTrades(c *fiber.Ctx) error {
	var errs = new(helpers.Errors)

	params := new(queries.TradeFilters)
	if err := c.QueryParser(params); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(helpers.Errors{
			Errors: []string{"server.method.invalid_query"},
		})
	}

	helpers.Vaildate(params, errs)
	if errs.Size() > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errs)
	}

	trades, err := p.Pipeline.GetTradeHistory(c.UserContext(), params.ToFilter(0))
	if err != nil {
		return helpers.ResponseError(c, err)
	}

	trades_json := make([]entities.PublicTradeEntity, 0, len(trades))
	for _, trade := range trades {
		trades_json = append(trades_json, entities.TradeToPublic(trade))
	}

	return c.Status(fiber.StatusOK).JSON(trades_json)
}
