package domain

import "time"

// ExecutionResult describe lo que pagaría/recibiría un taker al cruzar el book.
type ExecutionResult struct {
	BasePrice    float64
	AvgExecPrice float64
	MarketImpact float64
	Slippage     float64
	Fee          float64 // reportado, no aplicado a FinalPrice
	FinalPrice   float64
	Side         Side
	SizeUSD      float64
}

// ExitSource indica de dónde salió el precio de salida de un backtest.
type ExitSource string

const (
	ExitFromTrades   ExitSource = "twap"
	ExitFromSimulate ExitSource = "simulated"
)

// EntryDetails recoge la simulación de ejecución de una alerta.
type EntryDetails struct {
	AlertPrice     float64
	ExecutionPrice float64
	EntryPrice     float64
	ExitPrice      float64
	Drift          float64
	ExitSource     ExitSource
}

// BacktestResult es el resultado de una alerta del set de test.
// Se produce en cada run y nunca modifica la alerta.
type BacktestResult struct {
	AlertID   int64
	Timestamp time.Time
	Score     float64
	Execution EntryDetails
	Horizon   time.Duration
	PnL       float64
	ROI       float64
}

// BacktestReport es el agregado de un run.
type BacktestReport struct {
	RunID        string
	StartedAt    time.Time
	TrainSize    int
	TestSize     int
	ValidResults int
	AvgROI       float64
	WinRate      float64
	Best         float64
	Worst        float64
	Horizon      time.Duration
}

// QualityReport resume la precisión de la detección según labels manuales.
type QualityReport struct {
	Labeled        int
	TruePositives  int
	FalsePositives int
	Unsure         int
	Precision      float64
	TopFalse       []Alert
}
