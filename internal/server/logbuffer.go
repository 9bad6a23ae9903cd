package server

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultLogLines = 500

// LogBuffer keeps the most recent log lines in memory for /admin/logs. It is
// also a logrus hook, so attaching it to a logger mirrors every entry.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	count int
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = defaultLogLines
	}
	return &LogBuffer{lines: make([]string, size)}
}

func (b *LogBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.count < len(b.lines) {
		b.count++
	}
}

// Tail returns up to n of the newest lines, oldest first.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || b.count == 0 {
		return nil
	}

	if n > b.count {
		n = b.count
	}

	start := (b.next - n + len(b.lines)) % len(b.lines)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = b.lines[(start+i)%len(b.lines)]
	}

	return out
}

func (b *LogBuffer) Levels() []logrus.Level { return logrus.AllLevels }

func (b *LogBuffer) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	b.Add(strings.TrimRight(line, "\n"))
	return nil
}
