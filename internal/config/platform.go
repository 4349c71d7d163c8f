package config

import "time"

type Platform struct {
	// Комиссия платформы по умолчанию, если не задана на тире или сделке.
	DefaultCommissionPercent float64       `env:"PLATFORM_COMMISSION_PERCENT" envDefault:"10"`
	MonitorScanInterval      time.Duration `env:"MONITOR_SCAN_INTERVAL" envDefault:"30s"`
}
