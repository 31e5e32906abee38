package main

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/replwin/console"
	"pkt.systems/replwin/core"
	"pkt.systems/replwin/internal/appconfig"
	"pkt.systems/replwin/internal/clipboard"
	"pkt.systems/replwin/internal/command"
	"pkt.systems/replwin/internal/eventbus"
	"pkt.systems/replwin/internal/jseval"
	"pkt.systems/replwin/internal/logx"
	"pkt.systems/replwin/internal/persist"
	"pkt.systems/replwin/schema"
)

// runtime holds what every session of one process shares.
type runtime struct {
	cfg      appconfig.Config
	commands *command.Table
	bus      *eventbus.Bus
	store    *persist.Store
	noConfig bool

	mu       sync.Mutex
	sessions map[schema.SessionID]*core.Session
}

func newRuntime(ctx context.Context, cfg appconfig.Config, noConfig bool) (*runtime, error) {
	logger := pslog.Ctx(ctx)
	commands, err := command.NewDefaultTable(cfg.Session.CommandPrefix)
	if err != nil {
		return nil, err
	}
	store, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:      cfg,
		commands: commands,
		bus:      eventbus.New(logger),
		store:    store,
		noConfig: noConfig,
		sessions: make(map[schema.SessionID]*core.Session),
	}, nil
}

func (rt *runtime) newEvaluator(logger pslog.Logger) (core.Evaluator, error) {
	switch rt.cfg.Evaluator.Kind {
	case appconfig.EvaluatorJavaScript:
		cfg := jseval.Config{Timeout: rt.cfg.EvaluatorTimeout()}
		if !rt.noConfig {
			cfg.StartupScript = rt.cfg.Evaluator.StartupScript
		}
		return jseval.New(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported evaluator kind %q", rt.cfg.Evaluator.Kind)
	}
}

func (rt *runtime) newClipboard(logger pslog.Logger) core.Clipboard {
	if rt.cfg.Console.Clipboard == appconfig.ClipboardMemory {
		return clipboard.NewMemory()
	}
	system, err := clipboard.NewSystem(logger)
	if err != nil {
		logger.Warn("system clipboard unavailable; using memory clipboard", "err", err)
		return clipboard.NewMemory()
	}
	return system
}

// open builds, restores and initializes a session. A non-empty name loads
// the transcript saved under it; Release saves it back before closing.
func (rt *runtime) open(ctx context.Context, name string) (console.Attached, error) {
	logger := pslog.Ctx(ctx)
	evaluator, err := rt.newEvaluator(logger)
	if err != nil {
		return console.Attached{}, err
	}
	session, err := core.NewSession(rt.cfg.SessionConfig(), core.SessionDeps{
		Evaluator: evaluator,
		Commands:  rt.commands,
		Clipboard: rt.newClipboard(logger),
		EventSink: rt.bus,
		Logger:    logger,
	})
	if err != nil {
		return console.Attached{}, err
	}
	log := logx.WithSession(ctx, session.ID())
	if name != "" {
		log = log.With("transcript", name)
		if err := rt.restore(session, name); err != nil {
			_ = session.Close()
			return console.Attached{}, err
		}
	}
	events, unsubscribe := rt.bus.Subscribe(session.ID())
	rt.track(session)
	if _, err := session.Initialize(ctx); err != nil {
		log.Warn("session initialize failed", "err", err)
	}
	return console.Attached{
		Session: session,
		Events:  events,
		Release: func() {
			rt.untrack(session)
			unsubscribe()
			if name != "" {
				rt.save(log, session, name)
			}
			if err := session.Close(); err != nil {
				log.Warn("session close failed", "err", err)
			}
		},
	}, nil
}

func (rt *runtime) track(session *core.Session) {
	rt.mu.Lock()
	rt.sessions[session.ID()] = session
	rt.mu.Unlock()
}

func (rt *runtime) untrack(session *core.Session) {
	rt.mu.Lock()
	delete(rt.sessions, session.ID())
	rt.mu.Unlock()
}

// openSessions returns the number of sessions not yet released.
func (rt *runtime) openSessions() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.sessions)
}

// closeAll closes every open session, aborting running submissions. Their
// consoles end on the closed session and release them.
func (rt *runtime) closeAll(log pslog.Logger) int {
	rt.mu.Lock()
	sessions := make([]*core.Session, 0, len(rt.sessions))
	for _, session := range rt.sessions {
		sessions = append(sessions, session)
	}
	rt.mu.Unlock()
	for _, session := range sessions {
		if err := session.Close(); err != nil {
			log.Warn("session close failed", "session", session.ID(), "err", err)
		}
	}
	return len(sessions)
}

func (rt *runtime) restore(session *core.Session, name string) error {
	transcript, ok, err := rt.store.Load(name)
	if err != nil {
		return fmt.Errorf("load transcript %q: %w", name, err)
	}
	if !ok {
		return nil
	}
	return session.Restore(transcript.Blocks, transcript.History)
}

func (rt *runtime) save(log pslog.Logger, session *core.Session, name string) {
	transcript := persist.Transcript{
		Blocks:  session.Snapshot(),
		History: session.HistoryEntries(),
	}
	if err := rt.store.Save(name, transcript); err != nil {
		log.Warn("transcript save failed", "err", err)
		return
	}
	log.Info("transcript saved", "blocks", len(transcript.Blocks), "history", len(transcript.History))
}
