package factory

import (
	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
	"github.com/mailvet/mailvet/internal/dispatch"
)

// CreateDispatcher creates the batch dispatcher. With process isolation on,
// batches run in re-executed child processes; workerArgs are the arguments
// that put the child into worker mode.
func CreateDispatcher(cfg *config.Config, workerArgs []string, logger *zap.Logger) core.BatchDispatcher {
	dispatchCfg := cfg.GetDispatch()
	if dispatchCfg.ProcessIsolation {
		return dispatch.NewProcessPool(dispatchCfg, workerArgs, logger)
	}
	return dispatch.NewDispatcher(dispatchCfg, logger)
}
