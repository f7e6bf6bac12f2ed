package store

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/model"
)

type Submitter interface {
	Submit(ctx context.Context, cmd model.Command) error
}

// Watcher polls the store and forwards every section that changed since the
// last poll as a command.
type Watcher struct {
	store  *Store
	submit Submitter
	seen   map[Section]int64
}

// NewWatcher starts from the versions stored right now, which are the ones
// the daemon loaded at startup.
func NewWatcher(s *Store, submit Submitter) (*Watcher, error) {
	seen, err := s.Versions()
	if err != nil {
		return nil, err
	}
	return &Watcher{store: s, submit: submit, seen: seen}, nil
}

// Poll submits one command per changed section. A section that fails to
// decode is logged and skipped until it changes again.
func (w *Watcher) Poll(ctx context.Context) error {
	versions, err := w.store.Versions()
	if err != nil {
		return err
	}

	for _, sec := range Sections {
		v, ok := versions[sec]
		if !ok || v == w.seen[sec] {
			continue
		}

		body, _, err := w.store.Get(sec)
		if err != nil {
			return err
		}
		cmd, err := Decode(sec, body)
		if err != nil {
			log.Error().Err(err).Str("section", string(sec)).Msg("Ignoring invalid stored settings")
			w.seen[sec] = v
			continue
		}
		if err := w.submit.Submit(ctx, cmd); err != nil {
			return err
		}
		w.seen[sec] = v
		log.Info().Str("section", string(sec)).Int64("version", v).Msg("Settings change submitted")
	}
	return nil
}

func (w *Watcher) Run(ctx context.Context, clock clockwork.Clock, interval time.Duration) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := w.Poll(ctx); err != nil {
				log.Error().Err(err).Msg("Settings poll failed")
			}
		}
	}
}
