package handler

import (
	"visitledger/internal/collection/models"
)

// ClassResponse describes one class of the catalog.
type ClassResponse struct {
	ID          models.ClassID `json:"id"`
	URI         string         `json:"uri"`
	GatewayURL  string         `json:"gateway_url"`
	TotalSupply uint64         `json:"total_supply"`
}

// CollectionResponse answers GET /collection.
type CollectionResponse struct {
	Initialized bool            `json:"initialized"`
	Size        int             `json:"size"`
	Classes     []ClassResponse `json:"classes"`
}

// BalanceResponse is one class balance of a holder.
type BalanceResponse struct {
	Class  models.ClassID `json:"class_id"`
	Amount uint64         `json:"amount"`
}

// HoldingsResponse answers GET /collection/balances/{address}.
type HoldingsResponse struct {
	Holder   string            `json:"holder"`
	Balances []BalanceResponse `json:"balances"`
}

// OperatorResponse answers POST /collection/operators.
type OperatorResponse struct {
	Holder   string `json:"holder"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}
