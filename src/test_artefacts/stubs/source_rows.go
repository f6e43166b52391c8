package stubs

import (
	"time"

	"github.com/widodu77/knowledge-graph/src/domain"

	"github.com/brianvoe/gofakeit/v6"
)

type CustomerRowStub struct {
	row domain.SourceRow
}

func NewCustomerRowStub() CustomerRowStub {
	return CustomerRowStub{row: domain.SourceRow{
		"id":        gofakeit.Int64(),
		"name":      gofakeit.Name(),
		"join_date": gofakeit.DateRange(time.Now().AddDate(-3, 0, 0), time.Now()).UTC(),
	}}
}

func (cs CustomerRowStub) WithID(id int64) CustomerRowStub {
	cs.row["id"] = id
	return cs
}

func (cs CustomerRowStub) WithName(name string) CustomerRowStub {
	cs.row["name"] = name
	return cs
}

func (cs CustomerRowStub) Get() domain.SourceRow {
	return cs.row
}

type ProductRowStub struct {
	row domain.SourceRow
}

func NewProductRowStub() ProductRowStub {
	return ProductRowStub{row: domain.SourceRow{
		"id":          gofakeit.Int64(),
		"name":        gofakeit.ProductName(),
		"price":       "19.90",
		"category_id": gofakeit.Int64(),
	}}
}

func (ps ProductRowStub) WithID(id int64) ProductRowStub {
	ps.row["id"] = id
	return ps
}

func (ps ProductRowStub) WithPrice(price string) ProductRowStub {
	ps.row["price"] = price
	return ps
}

func (ps ProductRowStub) WithCategoryID(categoryID int64) ProductRowStub {
	ps.row["category_id"] = categoryID
	return ps
}

func (ps ProductRowStub) WithoutCategory() ProductRowStub {
	delete(ps.row, "category_id")
	return ps
}

func (ps ProductRowStub) Get() domain.SourceRow {
	return ps.row
}

type CategoryRowStub struct {
	row domain.SourceRow
}

func NewCategoryRowStub() CategoryRowStub {
	return CategoryRowStub{row: domain.SourceRow{
		"id":   gofakeit.Int64(),
		"name": gofakeit.ProductCategory(),
	}}
}

func (cs CategoryRowStub) WithID(id int64) CategoryRowStub {
	cs.row["id"] = id
	return cs
}

func (cs CategoryRowStub) WithName(name string) CategoryRowStub {
	cs.row["name"] = name
	return cs
}

func (cs CategoryRowStub) Get() domain.SourceRow {
	return cs.row
}

type OrderRowStub struct {
	row domain.SourceRow
}

func NewOrderRowStub() OrderRowStub {
	return OrderRowStub{row: domain.SourceRow{
		"id":          gofakeit.Int64(),
		"customer_id": gofakeit.Int64(),
		"ts":          gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).UTC(),
	}}
}

func (os OrderRowStub) WithID(id int64) OrderRowStub {
	os.row["id"] = id
	return os
}

func (os OrderRowStub) WithCustomerID(customerID int64) OrderRowStub {
	os.row["customer_id"] = customerID
	return os
}

func (os OrderRowStub) Get() domain.SourceRow {
	return os.row
}

type OrderItemRowStub struct {
	row domain.SourceRow
}

func NewOrderItemRowStub() OrderItemRowStub {
	return OrderItemRowStub{row: domain.SourceRow{
		"order_id":   gofakeit.Int64(),
		"product_id": gofakeit.Int64(),
		"quantity":   int64(1),
	}}
}

func (is OrderItemRowStub) WithOrderID(orderID int64) OrderItemRowStub {
	is.row["order_id"] = orderID
	return is
}

func (is OrderItemRowStub) WithProductID(productID int64) OrderItemRowStub {
	is.row["product_id"] = productID
	return is
}

func (is OrderItemRowStub) WithQuantity(quantity int64) OrderItemRowStub {
	is.row["quantity"] = quantity
	return is
}

func (is OrderItemRowStub) Get() domain.SourceRow {
	return is.row
}

type EventRowStub struct {
	row domain.SourceRow
}

func NewEventRowStub() EventRowStub {
	return EventRowStub{row: domain.SourceRow{
		"id":          gofakeit.Int64(),
		"customer_id": gofakeit.Int64(),
		"product_id":  gofakeit.Int64(),
		"event_type":  "view",
		"ts":          gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()).UTC(),
	}}
}

func (es EventRowStub) WithID(id int64) EventRowStub {
	es.row["id"] = id
	return es
}

func (es EventRowStub) WithCustomerID(customerID int64) EventRowStub {
	es.row["customer_id"] = customerID
	return es
}

func (es EventRowStub) WithProductID(productID int64) EventRowStub {
	es.row["product_id"] = productID
	return es
}

func (es EventRowStub) WithEventType(eventType string) EventRowStub {
	es.row["event_type"] = eventType
	return es
}

func (es EventRowStub) WithTimestamp(ts time.Time) EventRowStub {
	es.row["ts"] = ts
	return es
}

func (es EventRowStub) Get() domain.SourceRow {
	return es.row
}
