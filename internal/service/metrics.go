package service

import (
	"time"

	"digital-wallet/internal/core/ports"
)

// nopMetrics is used when no metrics sink is configured.
type nopMetrics struct{}

func (nopMetrics) ObserveClaim(string)                                     {}
func (nopMetrics) ObserveSettlement(string, string, string, time.Duration) {}
func (nopMetrics) ObserveLedgerRetry(string)                               {}
func (nopMetrics) ObserveCallerAbandoned()                                 {}
func (nopMetrics) ObserveWebhook(string)                                   {}

func metricsOrNop(m ports.SettlementMetrics) ports.SettlementMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
