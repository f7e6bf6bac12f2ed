package startup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallService(t *testing.T) {
	dir := t.TempDir()
	unitPath := filepath.Join(dir, "reefmon.service")
	configPath := filepath.Join(dir, "config.json")

	require.NoError(t, InstallService(unitPath, "/usr/local/bin/reefmon", configPath))

	b, err := os.ReadFile(unitPath)
	require.NoError(t, err)
	unit := string(b)
	assert.Contains(t, unit, "Type=notify")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/reefmon -config-file "+configPath)
	assert.Contains(t, unit, "WorkingDirectory="+dir)
}

func TestInstallServiceNeedsPaths(t *testing.T) {
	assert.Error(t, InstallService("", "/usr/local/bin/reefmon", "config.json"))
}

type notifications struct {
	mu     sync.Mutex
	states []string
}

func (n *notifications) record(_ bool, state string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
	return true, nil
}

func (n *notifications) count(state string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.states {
		if s == state {
			c++
		}
	}
	return c
}

func swapSystemd(t *testing.T, interval time.Duration) *notifications {
	t.Helper()
	n := &notifications{}
	oldNotify, oldWatchdog := sdNotify, watchdogEnabled
	sdNotify = n.record
	watchdogEnabled = func(bool) (time.Duration, error) { return interval, nil }
	t.Cleanup(func() { sdNotify, watchdogEnabled = oldNotify, oldWatchdog })
	return n
}

func TestNotifyReady(t *testing.T) {
	n := swapSystemd(t, 0)
	NotifyReady()
	NotifyStopping()
	assert.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyStopping}, n.states)
}

func TestWatchdogDisabledReturns(t *testing.T) {
	swapSystemd(t, 0)
	done := make(chan struct{})
	go func() {
		RunWatchdog(context.Background(), func() bool { return true })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog should return when the watchdog is off")
	}
}

func TestWatchdogFeedsOnlyWhileAlive(t *testing.T) {
	n := swapSystemd(t, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	alive := true
	go RunWatchdog(ctx, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return alive
	})

	require.Eventually(t, func() bool { return n.count(daemon.SdNotifyWatchdog) >= 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	alive = false
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	fed := n.count(daemon.SdNotifyWatchdog)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, fed, n.count(daemon.SdNotifyWatchdog))
}
