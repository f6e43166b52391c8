package entities

import "time"

// PurchaseLine é uma linha do histórico de compras de um Customer, já
// resolvida pelo grafo (PLACED -> CONTAINS).
type PurchaseLine struct {
	OrderID        int64     `json:"order_id"`
	OrderTimestamp time.Time `json:"order_timestamp"`
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int64     `json:"quantity"`
}

// CoOccurrence ranks a product that appears in the same orders as the
// anchor product. Weight is the number of shared orders.
type CoOccurrence struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Weight      int64  `json:"weight"`
}

// GraphCounts is the post-load verification snapshot: node count per label
// plus the total relationship count.
type GraphCounts struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships int64            `json:"relationships"`
}
