// Package logagg is a concrete logsession.Aggregator: a process-wide
// table of named log streams that can be leveled, rotated and tailed,
// standing in for original_source's LogAgregator/DebugStream pairing.
package logagg

import (
	"fmt"
	"sync"

	"github.com/un9021/uniset2/logger"
)

const defaultStream = "default"

type stream struct {
	mu     sync.Mutex
	level  int32
	subs   map[int]chan string
	nextID int
	log    logger.Logger
}

func newStream(name string, log logger.Logger) *stream {
	return &stream{subs: make(map[int]chan string), log: log.Named(name)}
}

func (s *stream) publish(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- line:
		default:
			// slow subscriber drops a line rather than blocking the publisher,
			// same trade-off egress.Queue makes for event fan-out.
		}
	}
}

func (s *stream) subscribe() (<-chan string, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan string, 256)
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Aggregator owns every named stream a gateway process exposes over
// logsession, created lazily on first reference.
type Aggregator struct {
	mu      sync.Mutex
	streams map[string]*stream
	log     logger.Logger
}

// New builds an empty Aggregator; log is the parent logger each named
// stream is tagged under.
func New(log logger.Logger) *Aggregator {
	return &Aggregator{streams: make(map[string]*stream), log: log}
}

func (a *Aggregator) resolve(logName string) string {
	if logName == "" {
		return defaultStream
	}
	return logName
}

func (a *Aggregator) stream(logName string) *stream {
	name := a.resolve(logName)

	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.streams[name]
	if !ok {
		s = newStream(name, a.log)
		a.streams[name] = s
	}
	return s
}

// Publish appends line to logName's stream, fanning it out to every
// subscribed logsession.LogSession, matching original_source's logOnEvent
// callback. It is the only way lines enter the aggregator; no logger in
// the cmd entrypoints feeds it.
func (a *Aggregator) Publish(logName, line string) {
	a.stream(logName).publish(line)
}

func (a *Aggregator) Subscribe(logName string) (<-chan string, func(), error) {
	ch, cancel := a.stream(logName).subscribe()
	return ch, cancel, nil
}

func (a *Aggregator) SetLevel(logName string, level int32) error {
	s := a.stream(logName)
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
	s.log.Info("log level set", "level", level)
	return nil
}

func (a *Aggregator) AddLevel(logName string, level int32) error {
	s := a.stream(logName)
	s.mu.Lock()
	s.level |= level
	s.mu.Unlock()
	return nil
}

func (a *Aggregator) DelLevel(logName string, level int32) error {
	s := a.stream(logName)
	s.mu.Lock()
	s.level &^= level
	s.mu.Unlock()
	return nil
}

func (a *Aggregator) Rotate(logName string) error {
	a.stream(logName).log.Info("log rotate requested")
	return nil
}

func (a *Aggregator) SetLogFile(logName string, enabled bool) error {
	a.stream(logName).log.Info(fmt.Sprintf("log file output set to %v", enabled))
	return nil
}
