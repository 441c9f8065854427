package models

import "github.com/shopspring/decimal"

// Address is a billing or shipping location.
type Address struct {
	FirstName string
	LastName  string
	Address1  string
	Address2  string
	City      string
	State     string
	Zip       string
	Country   string
}

// IsEmpty reports whether the address carries no usable street line.
func (a Address) IsEmpty() bool { return a.Address1 == "" }

// Customer is the platform customer as consumed by this integration.
type Customer struct {
	ID              string
	Email           string
	BillingAddress  Address
	ShippingAddress Address
}

// LineItem is a purchasable cart entry. Profile is non-nil only for items
// carrying an auto-renew recurring-payments feature. SignupFee is the
// one-time, non-recurring portion billed separately from the schedule.
type LineItem struct {
	Name      string
	Amount    decimal.Decimal
	Quantity  int
	Profile   *RecurringProfile
	SignupFee decimal.Decimal
}

// Total returns amount × quantity plus the one-time fee.
func (i LineItem) Total() decimal.Decimal {
	qty := i.Quantity
	if qty == 0 {
		qty = 1
	}
	return i.Amount.Mul(decimal.NewFromInt(int64(qty))).Add(i.SignupFee)
}

// Cart is the checkout contents a purchase request is built from.
type Cart struct {
	ID          string
	Customer    Customer
	Items       []LineItem
	Description string
}

// Total returns the full cart total including one-time fees.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Total())
	}
	return total
}

// RecurringItem returns the single auto-renew line item, if the cart
// qualifies as a recurring purchase. A cart qualifies only when exactly one
// eligible item carries a recurring profile.
func (c *Cart) RecurringItem() (*LineItem, bool) {
	var found *LineItem
	for i := range c.Items {
		if c.Items[i].Profile == nil {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = &c.Items[i]
	}
	return found, found != nil
}
