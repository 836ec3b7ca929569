// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter routes Fx framework events through a zap.Logger so the
// dependency container logs in the same format as the application.
type FxLoggerAdapter struct {
	logger *zap.Logger
}

// NewFxLoggerAdapter creates an fxevent.Logger backed by the given zap logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger.Named("fx")}
}

// LogEvent implements fxevent.Logger. Routine container activity is logged at
// debug; failures are logged at error.
func (a *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		a.logger.Debug("OnStart hook executing", zap.String("callee", e.FunctionName))
	case *fxevent.OnStartExecuted:
		a.hookResult("OnStart hook", e.FunctionName, e.Err)
	case *fxevent.OnStopExecuting:
		a.logger.Debug("OnStop hook executing", zap.String("callee", e.FunctionName))
	case *fxevent.OnStopExecuted:
		a.hookResult("OnStop hook", e.FunctionName, e.Err)
	case *fxevent.Supplied:
		a.logger.Debug("Supplied", zap.String("type", e.TypeName), zap.Error(e.Err))
	case *fxevent.Provided:
		for _, typeName := range e.OutputTypeNames {
			a.logger.Debug("Provided", zap.String("type", typeName))
		}
		if e.Err != nil {
			a.logger.Error("Provide failed", zap.Error(e.Err))
		}
	case *fxevent.Invoking:
		a.logger.Debug("Invoking", zap.String("function", e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			a.logger.Error("Invoke failed", zap.String("function", e.FunctionName), zap.Error(e.Err))
		}
	case *fxevent.Started:
		if e.Err != nil {
			a.logger.Error("Start failed", zap.Error(e.Err))
		} else {
			a.logger.Info("Started")
		}
	case *fxevent.Stopping:
		a.logger.Info("Stopping", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			a.logger.Error("Stop failed", zap.Error(e.Err))
		}
	case *fxevent.RollingBack:
		a.logger.Error("Start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		if e.Err != nil {
			a.logger.Error("Rollback failed", zap.Error(e.Err))
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			a.logger.Error("Logger initialization failed", zap.Error(e.Err))
		}
	}
}

func (a *FxLoggerAdapter) hookResult(hook, callee string, err error) {
	if err != nil {
		a.logger.Error(hook+" failed", zap.String("callee", callee), zap.Error(err))
		return
	}
	a.logger.Debug(hook+" executed", zap.String("callee", callee))
}
