package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init sends the standard logger to stdout and, when dir is set, to a
// rotated file in dir. The returned closer flushes the file.
func Init(dir string) (io.Closer, error) {
	log.SetFlags(log.LstdFlags)
	if dir == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", abs, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(abs, "exercisetracker.log"),
		MaxSize:    10, // MB
		MaxBackups: 30,
		MaxAge:     30, // days
		Compress:   true,
		LocalTime:  true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Printf("logging to %s", file.Filename)
	return file, nil
}
