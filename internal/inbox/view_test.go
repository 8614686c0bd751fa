package inbox

import (
	"context"
	"testing"
	"time"

	"crm-platform/internal/communications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_FilterAndSelection(t *testing.T) {
	v := NewView(NewLoader(sample(), nil, quietLogger()))
	applied, err := v.Refresh(context.Background(), communications.CommunicationsFilter{Limit: 20})
	require.NoError(t, err)
	require.True(t, applied)

	v.Select("e1")
	v.SetFilter(communications.FilterCall)
	assert.Equal(t, []string{"c1"}, ids(v.Visible()))

	sel, ok := v.Selected()
	require.True(t, ok)
	assert.Equal(t, "e1", sel.ID)

	snap := v.Snapshot()
	require.NotNil(t, snap.Selected)
	assert.Equal(t, communications.FilterCall, snap.Filter)
	assert.Equal(t, StatusReady, snap.Sources[SourceChats].Status)

	v.Deselect()
	_, ok = v.Selected()
	assert.False(t, ok)
}

func TestView_StaleRefreshIsDiscarded(t *testing.T) {
	slow := sample()
	slow.gate = make(chan struct{})
	fast := &fakeSource{calls: []communications.CallRecord{{ID: "fresh", CreatedAt: time.Now()}}}

	v := NewView(NewLoader(slow, nil, quietLogger()))

	done := make(chan bool, 1)
	go func() {
		applied, _ := v.Refresh(context.Background(), communications.CommunicationsFilter{Limit: 20})
		done <- applied
	}()

	// Wait until the slow load is in flight, then supersede it.
	require.Eventually(t, func() bool {
		slow.mu.Lock()
		defer slow.mu.Unlock()
		return len(slow.filters) == 3
	}, time.Second, time.Millisecond)

	v.loader = NewLoader(fast, nil, quietLogger())
	applied, err := v.Refresh(context.Background(), communications.CommunicationsFilter{Limit: 20})
	require.NoError(t, err)
	require.True(t, applied)

	close(slow.gate)
	assert.False(t, <-done)
	assert.Equal(t, []string{"fresh"}, ids(v.Visible()))
}

func TestView_ClosedViewDropsResult(t *testing.T) {
	src := sample()
	src.gate = make(chan struct{})
	v := NewView(NewLoader(src, nil, quietLogger()))

	done := make(chan bool, 1)
	go func() {
		applied, _ := v.Refresh(context.Background(), communications.CommunicationsFilter{Limit: 20})
		done <- applied
	}()
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.filters) == 3
	}, time.Second, time.Millisecond)

	v.Close()
	close(src.gate)
	assert.False(t, <-done)
	assert.Empty(t, v.Visible())

	applied, err := v.Refresh(context.Background(), communications.CommunicationsFilter{})
	require.NoError(t, err)
	assert.False(t, applied)
}
