package logsvc

import "github.com/trezcool/edumart/core"

// NopLogger discards everything. Used by tests and CLI commands that report on stdout.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func NewNopLogger() NopLogger { return NopLogger{} }

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
