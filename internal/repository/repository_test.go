package repository

import "pdf-chat-server/internal/domain"

// nopLogger discards log output in repository tests.
type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

var _ domain.Logger = nopLogger{}
