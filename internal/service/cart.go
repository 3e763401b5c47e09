package service

import (
	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"github.com/shopspring/decimal"
)

// StockReserver is the part of the catalog a cart reserves against
type StockReserver interface {
	Reserve(itemID int64, delta int) error
	Release(itemID int64, delta int)
	Item(itemID int64) (models.CatalogItem, bool)
}

// Cart is an ordered set of lines, unique by item, whose quantities are
// reserved against a StockReserver. Every line keeps Quantity >= 1.
type Cart struct {
	stock StockReserver
	lines []models.CartLine
}

// NewCart creates an empty cart reserving against stock
func NewCart(stock StockReserver) *Cart {
	return &Cart{stock: stock}
}

// AddItem adds one unit of the item, creating its line when absent
func (c *Cart) AddItem(itemID int64) error {
	item, ok := c.stock.Item(itemID)
	if !ok {
		util.CartMutationsTotal.WithLabelValues("add", "not_found").Inc()
		return apperrors.NotFound("item", itemID)
	}
	if item.AvailableQuantity <= 0 {
		util.CartMutationsTotal.WithLabelValues("add", "insufficient_stock").Inc()
		return apperrors.InsufficientStock(itemID, 1, item.AvailableQuantity)
	}
	if err := c.stock.Reserve(itemID, 1); err != nil {
		util.CartMutationsTotal.WithLabelValues("add", "rejected").Inc()
		return err
	}

	if i := c.find(itemID); i >= 0 {
		c.lines[i].Quantity++
	} else {
		c.lines = append(c.lines, models.CartLine{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  1,
		})
	}

	util.CartMutationsTotal.WithLabelValues("add", "ok").Inc()
	return nil
}

// SetQuantity moves a line to newQuantity, reserving or releasing the
// difference. A quantity below 1 removes the line.
func (c *Cart) SetQuantity(itemID int64, newQuantity int) error {
	i := c.find(itemID)
	if i < 0 {
		util.CartMutationsTotal.WithLabelValues("set_quantity", "not_found").Inc()
		return apperrors.NotFound("cart line", itemID)
	}
	if newQuantity < 1 {
		return c.RemoveItem(itemID)
	}

	delta := newQuantity - c.lines[i].Quantity
	switch {
	case delta > 0:
		if err := c.stock.Reserve(itemID, delta); err != nil {
			util.CartMutationsTotal.WithLabelValues("set_quantity", "rejected").Inc()
			return err
		}
	case delta < 0:
		c.stock.Release(itemID, -delta)
	}

	c.lines[i].Quantity = newQuantity
	util.CartMutationsTotal.WithLabelValues("set_quantity", "ok").Inc()
	return nil
}

// RemoveItem releases the line's whole quantity and deletes it
func (c *Cart) RemoveItem(itemID int64) error {
	i := c.find(itemID)
	if i < 0 {
		util.CartMutationsTotal.WithLabelValues("remove", "not_found").Inc()
		return apperrors.NotFound("cart line", itemID)
	}

	c.stock.Release(itemID, c.lines[i].Quantity)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	util.CartMutationsTotal.WithLabelValues("remove", "ok").Inc()
	return nil
}

// Clear releases every reservation and empties the cart. Clearing an empty
// cart does nothing.
func (c *Cart) Clear() {
	for _, line := range c.lines {
		c.stock.Release(line.ItemID, line.Quantity)
	}
	c.lines = nil
}

// Totals recomputes item count and price from the current lines
func (c *Cart) Totals() models.Totals {
	totals := models.Totals{TotalPrice: decimal.Zero}
	for _, line := range c.lines {
		totals.TotalItems += line.Quantity
		totals.TotalPrice = totals.TotalPrice.Add(line.LineTotal())
	}
	return totals
}

// Lines returns a copy of the cart lines in insertion order
func (c *Cart) Lines() []models.CartLine {
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for itemID
func (c *Cart) Line(itemID int64) (models.CartLine, bool) {
	if i := c.find(itemID); i >= 0 {
		return c.lines[i], true
	}
	return models.CartLine{}, false
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) find(itemID int64) int {
	for i := range c.lines {
		if c.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}
