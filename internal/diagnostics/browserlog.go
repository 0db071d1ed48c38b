package diagnostics

import (
	"strings"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
)

// LogFollower tails the browser's own debug log (chromium's chrome_debug.log
// when enabled) and surfaces error lines that never reach the CDP console
// domain, such as extension service-worker crashes.
type LogFollower struct {
	t      *tail.Tail
	logger *zap.Logger
	done   chan struct{}
}

// FollowBrowserLog starts tailing path. The file may not exist yet; the
// follower waits for it to be created.
func FollowBrowserLog(path string, logger *zap.Logger) (*LogFollower, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}

	f := &LogFollower{
		t:      t,
		logger: logger.Named("browserlog"),
		done:   make(chan struct{}),
	}
	go f.loop()
	return f, nil
}

func (f *LogFollower) loop() {
	defer close(f.done)
	for line := range f.t.Lines {
		if line.Err != nil {
			f.logger.Debug("Browser log read error.", zap.Error(line.Err))
			continue
		}
		text := line.Text
		if strings.Contains(text, ":ERROR:") || strings.Contains(text, ":FATAL:") {
			f.logger.Warn("Browser log error line.", zap.String("line", truncate(text, maxConsoleTextLen)))
		}
	}
}

// Stop halts the follower and waits for the read loop to exit.
func (f *LogFollower) Stop() error {
	err := f.t.Stop()
	<-f.done
	return err
}
