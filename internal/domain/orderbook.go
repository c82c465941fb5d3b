package domain

import "strconv"

// OrderBook representa el libro de órdenes de un token.
type OrderBook struct {
	TokenID string
	Bids    []BookEntry // ordenados mayor a menor precio
	Asks    []BookEntry // ordenados menor a mayor precio
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64 // shares
}

// Levels devuelve el lado que consume un taker: asks para BUY, bids para SELL.
func (ob OrderBook) Levels(side Side) []BookEntry {
	if side == SideSell {
		return ob.Bids
	}
	return ob.Asks
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Spread devuelve el spread del book (ask - bid).
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// DepthUSD devuelve el valor en USD (size × price) disponible en un lado del book.
func (ob OrderBook) DepthUSD(side Side) float64 {
	var total float64
	for _, l := range ob.Levels(side) {
		total += l.Price * l.Size
	}
	return total
}

// ParsePrice convierte un string de precio a float64.
// Usado en el mapping de la API.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
