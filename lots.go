package lotbook

import "time"

// Lot is an open quantity of a stock acquired at a unit price.
type Lot struct {
	Quantity  Quantity
	Price     Money // per unit
	Timestamp time.Time
	Trade     string
}

// Cost returns quantity times price.
func (l Lot) Cost() Money { return l.Price.Mul(l.Quantity) }

// UnmatchedSell is the part of a sell that found no open lot. It is counted
// at zero cost basis and usually points to a missing buy upstream.
type UnmatchedSell struct {
	Trade     string
	Stock     string
	Quantity  Quantity
	Timestamp time.Time
}

// lots is a FIFO queue of open lots, oldest first.
type lots []Lot

// buy appends a lot to the back of the queue.
func (l lots) buy(lot Lot) lots {
	if lot.Quantity.IsZero() {
		return l
	}
	return append(l, lot)
}

// sell consumes quantity from the front of the queue at price. It returns
// the remaining lots, the realized gain and the quantity that could not be
// matched.
func (l lots) sell(quantity Quantity, price Money) (remaining lots, gain Money, unmatched Quantity) {
	gain = M(0, price.Currency())
	for len(l) > 0 && quantity.IsPositive() {
		front := l[0]
		if !front.Quantity.GreaterThan(quantity) {
			// Full sale of this lot
			gain = gain.Add(price.Sub(front.Price).Mul(front.Quantity))
			quantity = quantity.Sub(front.Quantity)
			l = l[1:]
			continue
		}
		// Partial sale, the remainder stays in front.
		gain = gain.Add(price.Sub(front.Price).Mul(quantity))
		front.Quantity = front.Quantity.Sub(quantity)
		quantity = Q(0)
		l = append(lots{front}, l[1:]...)
	}
	if quantity.IsPositive() {
		gain = gain.Add(price.Mul(quantity))
		unmatched = quantity
	}
	return l, gain, unmatched
}

// quantity returns the total open quantity.
func (l lots) quantity() Quantity {
	var q Quantity
	for _, lot := range l {
		q = q.Add(lot.Quantity)
	}
	return q
}

// cost returns the total open cost.
func (l lots) cost() Money {
	var c Money
	for _, lot := range l {
		c = c.Add(lot.Cost())
	}
	return c
}
