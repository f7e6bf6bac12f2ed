package startup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog/log"
)

var (
	sdNotify        = daemon.SdNotify
	watchdogEnabled = daemon.SdWatchdogEnabled
)

// InstallService writes the systemd unit for the daemon. The unit uses
// Type=notify, so systemd waits for NotifyReady before it counts the service
// as started, and restarts it if the watchdog stops being fed.
func InstallService(unitPath, binaryPath, configFile string) error {
	if unitPath == "" || binaryPath == "" {
		return fmt.Errorf("systemd_unit_path and binary_path must both be set")
	}
	configFile, err := filepath.Abs(configFile)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	unit := fmt.Sprintf(`[Unit]
Description=Reef aquarium controller
After=network.target

[Service]
Type=notify
WorkingDirectory=%s
ExecStart=%s -config-file %s
WatchdogSec=30s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, filepath.Dir(configFile), binaryPath, configFile)

	if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	log.Info().Str("path", unitPath).Msg("Installed systemd unit")
	return nil
}

// NotifyReady tells systemd we are up. Outside systemd it does nothing.
func NotifyReady() {
	notify(daemon.SdNotifyReady)
}

func NotifyStopping() {
	notify(daemon.SdNotifyStopping)
}

func notify(state string) {
	sent, err := sdNotify(false, state)
	if err != nil {
		log.Warn().Err(err).Str("state", state).Msg("Failed to notify systemd")
		return
	}
	if sent {
		log.Debug().Str("state", state).Msg("Notified systemd")
	}
}

// RunWatchdog feeds the systemd watchdog at half its interval until ctx is
// cancelled. alive is checked first so a stuck controller loop stops the
// feeding and systemd restarts us.
func RunWatchdog(ctx context.Context, alive func() bool) {
	interval, err := watchdogEnabled(false)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read systemd watchdog settings")
		return
	}
	if interval == 0 {
		log.Debug().Msg("Systemd watchdog not enabled")
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !alive() {
				log.Error().Msg("Controller loop stalled, not feeding watchdog")
				continue
			}
			notify(daemon.SdNotifyWatchdog)
		}
	}
}
