// Package modkit wires modules, shared deps go in and routes and ports come out
package modkit

import (
	"arledger/internal/modkit/module"
	"arledger/internal/modkit/repokit"
	"arledger/internal/platform/config"
	"arledger/internal/platform/logger"
	"arledger/internal/platform/metrics"
	"arledger/internal/platform/store"
)

// Module is re-exported so module packages import only modkit
type Module = module.Module

// Deps are handed to every module constructor, CH and Metrics may be nil
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Metrics *metrics.Metrics
}
