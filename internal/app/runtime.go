package app

import (
	"os"
	"sync"
)

const testModeEnv = "SENTRA_TEST_MODE"

var (
	testMode     bool
	testModeOnce sync.Once
)

// InTestMode reports whether the process runs under the test harness. Mains
// use it to bail out early so package test binaries never bind ports or dial
// Postgres and Redis.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode = os.Getenv(testModeEnv) == "1"
	})
	return testMode
}
