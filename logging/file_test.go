package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "og-eval.log")
	appender := NewFileAppender(path)

	logger := NewBlankLogger("eval")
	logger.AddAppender(appender)
	logger.Warnw("goal fraction unavailable, scoring episode as 0", "episode", 2)
	logger.Debug("plan received")
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, appender.Close(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "WARN\teval\tlogging/file_test.go:")
	test.That(t, string(contents), test.ShouldContainSubstring, `{"episode":2}`)
	test.That(t, string(contents), test.ShouldContainSubstring, "plan received")
}
