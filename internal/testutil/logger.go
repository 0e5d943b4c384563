package testutil

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Logger returns a discarding debug-level logger and the hook capturing its entries.
func Logger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

// Messages returns the messages logged at level that contain substr.
func Messages(hook *test.Hook, level logrus.Level, substr string) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			out = append(out, e.Message)
		}
	}
	return out
}
