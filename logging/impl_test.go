package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	// Use the length of the first string as a weak verification of checking that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Log level and logger name.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	// Filename:line_number.
	actualFilename, _, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, _ := strings.Cut(expectedParts[3], ":")
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)

	test.That(t, actualParts[4:], test.ShouldResemble, expectedParts[4:])
}

func TestConsoleOutputFormat(t *testing.T) {
	notStderr := &bytes.Buffer{}
	logger := &impl{"eval", NewAtomicLevelAt(DEBUG), true, []Appender{NewWriterAppender(notStderr)}}

	logger.Info("impl Info log")
	assertLogMatches(t, notStderr,
		"2023-10-30T13:12:09.459Z\tINFO\teval\tlogging/impl_test.go:45\timpl Info log")

	logger.Warnf("skipping %s", "TELEPORT_ALL")
	assertLogMatches(t, notStderr,
		"2023-10-30T13:12:09.459Z\tWARN\teval\tlogging/impl_test.go:49\tskipping TELEPORT_ALL")

	logger.Infow("step", "op", "GRASP", "success", true)
	assertLogMatches(t, notStderr,
		"2023-10-30T13:12:09.459Z\tINFO\teval\tlogging/impl_test.go:53\tstep\t{\"op\":\"GRASP\",\"success\":true}")

	// Only public fields are serialized.
	logger.Infow("struct", "value", BasicStruct{1, "hidden"})
	assertLogMatches(t, notStderr,
		"2023-10-30T13:12:09.459Z\tINFO\teval\tlogging/impl_test.go:58\tstruct\t{\"value\":{\"X\":1}}")
}

func TestLevels(t *testing.T) {
	notStderr := &bytes.Buffer{}
	logger := &impl{"", NewAtomicLevelAt(WARN), true, []Appender{NewWriterAppender(notStderr)}}

	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, notStderr.Len(), test.ShouldEqual, 0)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debug("kept")
	test.That(t, notStderr.String(), test.ShouldContainSubstring, "kept")

	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"Error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}
	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSublogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("executor").Sublogger("teleport")

	sub.Warnw("object or receptacle not found", "object", "apple_1")
	test.That(t, logs.FilterLoggerName("executor.teleport").Len(), test.ShouldEqual, 1)
	entry := logs.All()[0]
	test.That(t, entry.Message, test.ShouldEqual, "object or receptacle not found")
	test.That(t, entry.ContextMap()["object"], test.ShouldEqual, "apple_1")
	test.That(t, sub.Sync(), test.ShouldBeNil)
}
