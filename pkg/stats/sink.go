package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink пишет строки журнала в файл в режиме дозаписи.
// Используется как приемник для SessionStats, когда журнал экономии
// нужно сохранять между перезапусками процесса.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink открывает (или создает) файл журнала.
// Родительская директория создается при необходимости.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats log %s: %w", path, err)
	}

	return &FileSink{file: file}, nil
}

// Write реализует io.Writer
func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Write(p)
}

// Close закрывает файл журнала
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
