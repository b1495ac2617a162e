package heartbeat

import (
	"testing"
	"time"

	liberr "github.com/un9021/uniset2/errors"
	"github.com/un9021/uniset2/sm"
)

// savingSM records every LocalSaveValue call on top of sm.Mock.
type savingSM struct {
	*sm.Mock
	saved []int64
}

func (s *savingSM) LocalSaveValue(id sm.SensorId, value int64) liberr.Error {
	s.saved = append(s.saved, value)
	return s.Mock.LocalSaveValue(id, value)
}

func TestDisabledWhenNoSensorConfigured(t *testing.T) {
	e := New(sm.NoSensor, 10, time.Second)
	if e.Enabled() {
		t.Fatalf("expected disabled emitter")
	}

	mock := sm.NewMock(false)
	e.Tick(mock)
	if len(mock.Asked()) != 0 {
		t.Fatalf("disabled emitter should not touch SM")
	}
}

func TestEnabledWritesMaxEveryTick(t *testing.T) {
	e := New(sm.SensorId(7), 100, time.Second)
	mock := &savingSM{Mock: sm.NewMock(false)}

	e.Tick(mock)
	e.Tick(mock)

	if !e.Enabled() {
		t.Fatalf("expected enabled emitter")
	}
	if len(mock.saved) != 2 || mock.saved[0] != 100 || mock.saved[1] != 100 {
		t.Fatalf("expected Max (100) written on each of 2 ticks, got %v", mock.saved)
	}
}

func TestTickRetriesSilentlyOnFailure(t *testing.T) {
	e := New(sm.SensorId(7), 100, time.Second)
	mock := sm.NewMock(false)
	mock.SetFailCalls(true)

	// must not panic even though every SM call fails
	e.Tick(mock)
}
