package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ayusman/mukha/internal/capture"
)

func TestPreview_Lifecycle(t *testing.T) {
	p := NewPreview()
	require.False(t, p.Latest().Active)

	jpeg, seq := p.Frame()
	require.Nil(t, jpeg)
	require.Zero(t, seq)

	p.begin(KindRegister)
	snap := p.Latest()
	require.True(t, snap.Active)
	require.Equal(t, KindRegister, snap.Kind)
	require.Equal(t, uint64(1), snap.Seq)

	p.publish([]byte{0xff, 0xd8}, capture.Status{Samples: 1, Required: 5})
	jpeg, seq = p.Frame()
	require.Equal(t, []byte{0xff, 0xd8}, jpeg)
	require.Equal(t, uint64(2), seq)
	require.Equal(t, 1, p.Latest().Status.Samples)

	// a status without a frame keeps the last frame
	p.publish(nil, capture.Status{Samples: 2, Required: 5})
	jpeg, _ = p.Frame()
	require.Equal(t, []byte{0xff, 0xd8}, jpeg)

	p.end()
	require.False(t, p.Latest().Active)
	require.Equal(t, 2, p.Latest().Status.Samples)

	// a new capture starts without the previous frame
	p.begin(KindAuthenticate)
	jpeg, _ = p.Frame()
	require.Nil(t, jpeg)
	require.Zero(t, p.Latest().Status.Samples)
}

func TestPreview_WatchFrames(t *testing.T) {
	p := NewPreview()
	require.False(t, p.wantsFrames())

	stopA := p.WatchFrames()
	stopB := p.WatchFrames()
	require.True(t, p.wantsFrames())

	stopA()
	stopA()
	require.True(t, p.wantsFrames(), "a second stop must not unregister another viewer")

	stopB()
	require.False(t, p.wantsFrames())
}

func TestPreview_Subscribe(t *testing.T) {
	p := NewPreview()
	updates, unsubscribe := p.Subscribe(4)

	p.begin(KindAuthenticate)
	p.publish(nil, capture.Status{Samples: 1})

	first := <-updates
	require.True(t, first.Active)
	require.Equal(t, KindAuthenticate, first.Kind)
	second := <-updates
	require.Equal(t, 1, second.Status.Samples)
	require.Greater(t, second.Seq, first.Seq)

	unsubscribe()
	unsubscribe()
	_, open := <-updates
	require.False(t, open)

	// publishing after unsubscribe must not panic
	p.end()
}

func TestPreview_SlowSubscriberDropsUpdates(t *testing.T) {
	p := NewPreview()
	updates, unsubscribe := p.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < 10; i++ {
		p.publish(nil, capture.Status{})
	}

	snap := <-updates
	require.Equal(t, uint64(1), snap.Seq)
	select {
	case extra := <-updates:
		t.Fatalf("unexpected buffered update %d", extra.Seq)
	default:
	}
	require.Equal(t, uint64(10), p.Latest().Seq)
}
