package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type TradeEntity struct {
	ID        int64             `json:"id"`
	Market    string            `json:"market"`
	Price     decimal.Decimal   `json:"price"`
	Amount    decimal.Decimal   `json:"amount"`
	Total     decimal.Decimal   `json:"total"`
	Fee       decimal.Decimal   `json:"fee"`
	Side      types.OrderSide   `json:"side"`
	OrderID   int64             `json:"order_id"`
	Status    types.TradeStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

type PublicTradeEntity struct {
	ID        int64           `json:"id"`
	Market    string          `json:"market"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// TradeForMember renders trade from the side of memberID.
func TradeForMember(trade *models.Trade, memberID int64) TradeEntity {
	orderID, _ := trade.OrderForMember(memberID)

	fee := trade.SellerFee
	if trade.Side(memberID) == types.SideBuy {
		fee = trade.BuyerFee
	}

	return TradeEntity{
		ID:        trade.ID,
		Market:    trade.Key(),
		Price:     trade.Price,
		Amount:    trade.Quantity,
		Total:     trade.TotalValue,
		Fee:       fee,
		Side:      trade.Side(memberID),
		OrderID:   orderID,
		Status:    trade.Status,
		CreatedAt: trade.ExecutedAt,
	}
}

func TradeToPublic(trade *models.Trade) PublicTradeEntity {
	return PublicTradeEntity{
		ID:        trade.ID,
		Market:    trade.Key(),
		Price:     trade.Price,
		Amount:    trade.Quantity,
		Total:     trade.TotalValue,
		CreatedAt: trade.ExecutedAt,
	}
}
