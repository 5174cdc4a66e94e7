package routes

import (
	"crypto/rsa"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/zsmartex/carbonex/controllers"
	"github.com/zsmartex/carbonex/controllers/market_controllers"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/pipeline"
	"github.com/zsmartex/carbonex/routes/middlewares"
)

type Dependencies struct {
	Pipeline  *pipeline.Coordinator
	Store     ledger.Reader
	Members   middlewares.MemberStore
	PublicKey *rsa.PublicKey
}

func SetupRouter(deps Dependencies) *fiber.App {
	app := fiber.New()
	app.Use(recover.New())

	public := controllers.NewPublic(deps.Pipeline)

	app.Get("/api/v2/public/timestamp", controllers.GetTimestamp)
	app.Get("/api/v2/public/orderbook", public.GetOrderBook)
	app.Get("/api/v2/public/trades", public.GetTrades)

	authenticate := middlewares.Authenticate(deps.PublicKey, deps.Members)

	market := market_controllers.NewHandler(deps.Pipeline)
	market_group := app.Group("/api/v2/market", authenticate)
	market_group.Get("/orders", market.GetOrders)
	market_group.Post("/orders", market.CreateOrder)
	market_group.Get("/orders/:id", market.GetOrderByID)
	market_group.Patch("/orders/:id", market.UpdateOrder)
	market_group.Delete("/orders/:id", market.CancelOrderByID)
	market_group.Get("/trades", market.GetTrades)

	accounts := controllers.NewAccounts(deps.Store)
	account_group := app.Group("/api/v2/account", authenticate)
	account_group.Get("/balance", accounts.GetAccount)
	account_group.Get("/holdings", accounts.GetHoldings)

	return app
}
