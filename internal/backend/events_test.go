package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/randrd/internal/randr"
	"github.com/1broseidon/randrd/internal/randr/randrtest"
)

func TestHandleScreenChangeClassifiesChanges(t *testing.T) {
	tests := []struct {
		name   string
		change func(s *randrtest.Server)
		want   Reason
	}{
		{"echo of own apply", func(*randrtest.Server) {}, ReasonSelfApplied},
		{"another client", func(s *randrtest.Server) { s.Bump() }, ReasonExternal},
		{"pending configuration", func(s *randrtest.Server) { s.Hotplug() }, ReasonPendingReconfigure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			b := newTestBackend(t, s)
			rec := &recorder{}
			b.Subscribe(rec)

			_, err := b.ApplyConfig(singlePlan(), MethodPersistent)
			require.NoError(t, err)
			require.NotNil(t, b.Target())

			tt.change(s)
			b.HandleScreenChange(randr.ScreenChange{Width: 1920, Height: 1080, Rotation: randr.Rotate0})

			assert.Equal(t, []Reason{tt.want}, rec.reasons)
			if tt.want == ReasonSelfApplied {
				assert.NotNil(t, b.Target())
			} else {
				assert.Nil(t, b.Target())
			}
			require.Len(t, b.LogicalMonitors(), 1)
			assert.Equal(t, []string{"DP-1"}, b.LogicalMonitors()[0].Outputs)
		})
	}
}

func TestHandleScreenChangeRereadsHardware(t *testing.T) {
	s := newTestServer()
	b := newTestBackend(t, s)
	assert.Empty(t, b.LogicalMonitors())
	generation := b.GPU().Generation()

	s.Enable(crtcB, mode720, 0, 0, randr.Rotate0, outHDMI)
	s.Bump()
	b.HandleScreenChange(randr.ScreenChange{Width: 1280, Height: 720})

	assert.Equal(t, generation+1, b.GPU().Generation())
	require.Len(t, b.LogicalMonitors(), 1)
	assert.Equal(t, []string{"HDMI-2"}, b.LogicalMonitors()[0].Outputs)
	assert.Equal(t, "1280x720", b.LogicalMonitors()[0].Mode)
}

func TestHandleScreenChangeKeepsStateWhenRereadFails(t *testing.T) {
	s := newTestServer()
	s.Enable(crtcA, mode1080, 0, 0, randr.Rotate0, outDP)
	b := newTestBackend(t, s)
	rec := &recorder{}
	b.Subscribe(rec)
	generation := b.GPU().Generation()

	s.FailResources = true
	b.HandleScreenChange(randr.ScreenChange{Width: 1920, Height: 1080})

	assert.Equal(t, generation, b.GPU().Generation())
	assert.Empty(t, rec.reasons)
	require.NotNil(t, b.GPU().CrtcByID(crtcA))
	assert.True(t, b.GPU().CrtcByID(crtcA).On())
}

func TestHandleScreenChangeSwapsRotatedSize(t *testing.T) {
	s := newTestServer()
	b := newTestBackend(t, s)

	b.HandleScreenChange(randr.ScreenChange{
		Rotation: randr.Rotate90,
		Width:    1920,
		Height:   1080,
		MmWidth:  508,
		MmHeight: 286,
	})
	assert.Equal(t, ScreenSize{Width: 1080, Height: 1920, MmWidth: 286, MmHeight: 508}, b.ScreenSize())

	b.HandleScreenChange(randr.ScreenChange{
		Rotation: randr.Rotate180,
		Width:    1920,
		Height:   1080,
		MmWidth:  508,
		MmHeight: 286,
	})
	assert.Equal(t, ScreenSize{Width: 1920, Height: 1080, MmWidth: 508, MmHeight: 286}, b.ScreenSize())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonPendingReconfigure, classify(&randr.Resources{Timestamp: 10, ConfigTimestamp: 11}, 10))
	assert.Equal(t, ReasonSelfApplied, classify(&randr.Resources{Timestamp: 12, ConfigTimestamp: 5}, 12))
	assert.Equal(t, ReasonExternal, classify(&randr.Resources{Timestamp: 13, ConfigTimestamp: 5}, 12))
	assert.Equal(t, ReasonExternal, classify(&randr.Resources{Timestamp: 13, ConfigTimestamp: 5}, 0))
}
