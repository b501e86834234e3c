package testlogger

import (
	"os"
	"testing"

	"github.com/zkcred/zkcred/common/log"
)

// Level returns the test log level, debug when ZKCRED_TEST_LOGS=DEBUG.
func Level(t testing.TB) int {
	if v, ok := os.LookupEnv(log.TestLogsEnv); ok && v == "DEBUG" {
		t.Log("Enabling DebugLevel logs")
		return log.DebugLevel
	}
	return log.InfoLevel
}

// New returns a logger tagged with the running test's name.
func New(t testing.TB) log.Logger {
	return log.New(nil, Level(t), true).With("testName", t.Name())
}
