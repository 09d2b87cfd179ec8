package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics groups the prometheus collectors tracking vault activity.
type VaultMetrics struct {
	operations   *prometheus.CounterVec
	poolAmount   *prometheus.GaugeVec
	feeReserve   *prometheus.GaugeVec
	debtAmount   *prometheus.GaugeVec
	liquidations *prometheus.CounterVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide vault metrics singleton.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operations_total",
				Help: "Count of completed vault operations by type.",
			}, []string{"op"}),
			poolAmount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_pool_amount",
				Help: "Pool amount per token in native units.",
			}, []string{"token"}),
			feeReserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_fee_reserve",
				Help: "Accumulated fees per token in native units.",
			}, []string{"token"}),
			debtAmount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_debt_amount",
				Help: "Debt token units attributed per asset.",
			}, []string{"token"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_liquidations_total",
				Help: "Count of liquidation outcomes by kind.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.poolAmount,
			vaultRegistry.feeReserve,
			vaultRegistry.debtAmount,
			vaultRegistry.liquidations,
		)
	})
	return vaultRegistry
}

// ObserveOperation counts a completed operation.
func (m *VaultMetrics) ObserveOperation(op string) {
	if m == nil {
		return
	}
	if op == "liquidate_position" || op == "liquidate_deleverage" {
		m.liquidations.WithLabelValues(op).Inc()
	}
	m.operations.WithLabelValues(op).Inc()
}

// SetPoolAmount publishes a token's pool level.
func (m *VaultMetrics) SetPoolAmount(token string, amount float64) {
	if m == nil {
		return
	}
	m.poolAmount.WithLabelValues(token).Set(amount)
}

// SetFeeReserve publishes a token's fee reserve level.
func (m *VaultMetrics) SetFeeReserve(token string, amount float64) {
	if m == nil {
		return
	}
	m.feeReserve.WithLabelValues(token).Set(amount)
}

// SetDebtAmount publishes a token's attributed debt.
func (m *VaultMetrics) SetDebtAmount(token string, amount float64) {
	if m == nil {
		return
	}
	m.debtAmount.WithLabelValues(token).Set(amount)
}
