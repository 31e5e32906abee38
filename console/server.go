package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/replwin/core"
	"pkt.systems/replwin/internal/eventbus"
	"pkt.systems/replwin/internal/logx"
)

// Attached is an open session handed to a console. Release runs when the
// console is done with it.
type Attached struct {
	Session *core.Session
	Events  <-chan eventbus.Event
	Release func()
}

// Opener creates the session behind one console connection.
type Opener func(ctx context.Context) (Attached, error)

// Server exposes one session per SSH connection.
type Server struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	Listener           net.Listener
	Open               Opener
	logger             pslog.Logger
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Open == nil {
		return errors.New("session opener is required for SSH")
	}

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("ssh console listening", "addr", s.listenAddr())

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) listenAddr() string {
	if s.Listener != nil {
		return s.Listener.Addr().String()
	}
	return s.Addr
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", ssh.FingerprintSHA256(key))
	ok, err := authorizedKey(s.AuthorizedKeysPath, key)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !ok {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	log.Info("ssh pubkey accepted")
	return true
}

// authorizedKey reports whether key is listed in the authorized_keys file
// at path. Unparsable lines are skipped.
func authorizedKey(path string, key ssh.PublicKey) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, errors.New("authorized keys path is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read authorized keys: %w", err)
	}
	want := key.Marshal()
	for len(data) > 0 {
		parsed, _, _, rest, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			return false, nil
		}
		if bytes.Equal(parsed.Marshal(), want) {
			return true, nil
		}
		data = rest
	}
	return false, nil
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger.With("user", sess.User(), "remote", sess.RemoteAddr().String())
	if id := sess.Context().SessionID(); id != "" {
		log = log.With("ssh_session", id)
	}

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		return
	}

	attached, err := s.Open(pslog.ContextWithLogger(sess.Context(), log))
	if err != nil {
		log.Warn("ssh session open failed", "err", err)
		_, _ = io.WriteString(sess, "session unavailable\n")
		return
	}
	if attached.Release != nil {
		defer attached.Release()
	}
	ctx := logx.ContextWithSessionLogger(sess.Context(), log, attached.Session.ID())
	log = logx.Ctx(ctx)
	log.Info("ssh session opened", "term", pty.Term)

	sizes := make(chan Size, 1)
	go forwardSizes(ctx, winCh, sizes)

	ui := New(attached.Session, sess, attached.Events, log)
	ui.SetTitle("replwin " + sess.User())
	ui.SetSize(pty.Window.Width, pty.Window.Height)
	_ = ui.Run(ctx, sess, sizes)
	_ = sess.Exit(0)
	log.Info("ssh session closed", "term", pty.Term)
}

func forwardSizes(ctx context.Context, winCh <-chan gliderssh.Window, out chan<- Size) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case win, ok := <-winCh:
			if !ok {
				return
			}
			select {
			case out <- Size{Width: win.Width, Height: win.Height}:
			case <-ctx.Done():
				return
			}
		}
	}
}
