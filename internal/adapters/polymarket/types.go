package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// orderBookResponse es la respuesta de GET /book.
type orderBookResponse struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// --- Gamma API ---

// gammaEvent es un evento de GET /events con sus mercados.
type gammaEvent struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Slug    string        `json:"slug"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarket es un mercado dentro de un evento.
// Gamma devuelve números como strings y los arrays de tokens como JSON dentro de un string.
type gammaMarket struct {
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	Volume        json.Number `json:"volume"`
	ClobTokenIDs  string      `json:"clobTokenIds"`
	Outcomes      string      `json:"outcomes"`
	OutcomePrices string      `json:"outcomePrices"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
}

// --- Data API ---

// rawDataTrade es un trade de GET /trades de la Data API.
type rawDataTrade struct {
	ProxyWallet     string      `json:"proxyWallet"`
	Side            string      `json:"side"`
	Asset           string      `json:"asset"`
	ConditionID     string      `json:"conditionId"`
	Size            json.Number `json:"size"`
	Price           json.Number `json:"price"`
	Timestamp       json.Number `json:"timestamp"`
	Title           string      `json:"title"`
	Slug            string      `json:"slug"`
	Outcome         string      `json:"outcome"`
	TransactionHash string      `json:"transactionHash"`
}
