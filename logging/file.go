package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes console-formatted lines to a file that is rotated once it grows past
// MaxSizeMB.
type FileAppender struct {
	*ConsoleAppender
	file *lumberjack.Logger
}

// Rotation limits of a FileAppender.
const (
	MaxSizeMB  = 100
	MaxBackups = 3
)

// NewFileAppender creates an appender writing to path. The file and its directory are created on
// the first write.
func NewFileAppender(path string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Close closes the current log file.
func (appender *FileAppender) Close() error {
	return appender.file.Close()
}
