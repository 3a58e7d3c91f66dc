// Package server binds the chat room to the network: it owns the TCP
// listener, the SSH handshake and per-channel request plumbing, and hands
// authenticated PTY channels to chat sessions.
package server

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/mevdschee/chatd/internal/auth"
	"github.com/mevdschee/chatd/internal/chat"
	"github.com/mevdschee/chatd/internal/theme"
	"github.com/mevdschee/chatd/internal/user"
)

const defaultMotd = "Welcome to chatd. Type /help for commands."

// Server is the SSH chat server.
type Server struct {
	cfg       Config
	sshConfig *ssh.ServerConfig
	auth      *auth.Auth
	room      *chat.Room

	mu         sync.Mutex
	listener   net.Listener
	watcher    *auth.Watcher
	transcript *os.File
}

// NewServer wires policy files, MOTD, transcript log and host key into a
// ready-to-start server.
func NewServer(cfg Config) (*Server, error) {
	a := auth.New()

	if cfg.Oplist != "" {
		n, err := a.Ops.LoadFile(cfg.Oplist, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load oplist: %w", err)
		}
		log.Printf("Loaded %d operator keys from %s", n, cfg.Oplist)
	}
	if cfg.Whitelist != "" {
		n, err := a.Whitelist.LoadFile(cfg.Whitelist, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load whitelist: %w", err)
		}
		a.SetWhitelistMode(true)
		log.Printf("Loaded %d whitelist keys from %s (whitelist enabled)", n, cfg.Whitelist)
	}

	motd := defaultMotd
	if cfg.MotdFile != "" {
		data, err := os.ReadFile(cfg.MotdFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read motd: %w", err)
		}
		motd = strings.TrimRight(string(data), "\n")
	}

	room := chat.NewRoom(motd, a)

	s := &Server{
		cfg:  cfg,
		auth: a,
		room: room,
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open chat log: %w", err)
		}
		s.transcript = f
		room.SetTranscript(f)
	}

	hostKey, err := loadOrGenerateHostKey(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load host key: %w", err)
	}

	sshConfig := &ssh.ServerConfig{
		ServerVersion: "SSH-2.0-chatd",
		// Every key is accepted; the public key is the identity, and the
		// room applies whitelist and ban policy at join time so that the
		// client gets a readable rejection message.
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{
				Extensions: map[string]string{
					"fingerprint": auth.Fingerprint(key),
				},
			}, nil
		},
	}
	sshConfig.AddHostKey(hostKey)
	s.sshConfig = sshConfig

	if err := s.watchPolicyFiles(); err != nil {
		log.Printf("File watching disabled: %v", err)
	}

	return s, nil
}

// watchPolicyFiles hot-reloads the oplist, whitelist and MOTD when they
// change on disk.
func (s *Server) watchPolicyFiles() error {
	reload := make(map[string]func(string))
	if s.cfg.Oplist != "" {
		reload[s.cfg.Oplist] = func(path string) {
			if _, err := s.auth.Ops.LoadFile(path, true); err != nil {
				log.Printf("Failed to reload oplist: %v", err)
				return
			}
			s.room.SyncOps()
		}
	}
	if s.cfg.Whitelist != "" {
		reload[s.cfg.Whitelist] = func(path string) {
			if _, err := s.auth.Whitelist.LoadFile(path, true); err != nil {
				log.Printf("Failed to reload whitelist: %v", err)
			}
		}
	}
	if s.cfg.MotdFile != "" {
		reload[s.cfg.MotdFile] = func(path string) {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("Failed to reload motd: %v", err)
				return
			}
			s.room.SetMotd(strings.TrimRight(string(data), "\n"))
		}
	}
	if len(reload) == 0 {
		return nil
	}
	w, err := auth.NewWatcher(reload)
	if err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// Room exposes the engine, mainly for tests.
func (s *Server) Room() *chat.Room {
	return s.room
}

// Start begins listening for SSH connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	log.Printf("chatd listening on %s", listener.Addr())

	go s.acceptLoop(listener)
	return nil
}

// Stop closes the listener and auxiliary files.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.transcript != nil {
		s.transcript.Close()
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed network connection") {
				log.Printf("Failed to accept connection: %v", err)
			}
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		if err != io.EOF {
			log.Printf("Failed SSH handshake from %s: %v", conn.RemoteAddr(), err)
		}
		return
	}
	defer sshConn.Close()

	fingerprint := sshConn.Permissions.Extensions["fingerprint"]
	if s.cfg.Debug > 0 {
		log.Printf("Connection from %s (%s)", sshConn.User(), fingerprint)
	}

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, fmt.Sprintf("unknown channel type: %s", newChannel.ChannelType()))
			continue
		}
		go s.handleSession(newChannel, sshConn.User(), fingerprint)
	}
}

// envAccept lists the client-forwarded environment variables the server
// honors.
var envAccept = map[string]bool{
	"CHATD_THEME":     true,
	"CHATD_TIMESTAMP": true,
	"CHATD_BELL":      true,
}

func (s *Server) handleSession(newChannel ssh.NewChannel, username, fingerprint string) {
	channel, requests, err := newChannel.Accept()
	if err != nil {
		log.Printf("Could not accept session: %v", err)
		return
	}
	defer channel.Close()

	u := user.New(fingerprint, username)
	sess := chat.NewSession(channel, u)

	shell := make(chan struct{})
	go func() {
		var once sync.Once
		for req := range requests {
			switch req.Type {
			case "pty-req":
				var pty struct {
					Term          string
					Width, Height uint32
					PxW, PxH      uint32
					Modes         string
				}
				if err := ssh.Unmarshal(req.Payload, &pty); err == nil {
					sess.Resize(int(pty.Width))
				}
				req.Reply(true, nil)
			case "env":
				var kv struct{ Name, Value string }
				if err := ssh.Unmarshal(req.Payload, &kv); err == nil && envAccept[kv.Name] {
					applyEnvPref(u, kv.Name, kv.Value)
				}
				if req.WantReply {
					req.Reply(true, nil)
				}
			case "shell":
				req.Reply(true, nil)
				once.Do(func() { close(shell) })
			case "window-change":
				var win struct {
					Width, Height uint32
					PxW, PxH      uint32
				}
				if err := ssh.Unmarshal(req.Payload, &win); err == nil {
					sess.Resize(int(win.Width))
				}
			default:
				if req.WantReply {
					req.Reply(false, nil)
				}
			}
		}
	}()

	select {
	case <-shell:
	case <-time.After(30 * time.Second):
		return
	}

	if err := s.room.Join(sess); err != nil {
		// Auth rejection: explain, then close the channel.
		fmt.Fprintf(channel, "%s\r\n", err.Error())
		return
	}
	if s.cfg.Debug > 0 {
		log.Printf("%s joined as %s", fingerprint, u.Name())
	}

	sess.Run(s.room)
	s.room.Leave(sess)

	if s.cfg.Debug > 0 {
		log.Printf("%s (%s) disconnected", u.Name(), fingerprint)
	}
}

// applyEnvPref applies a client-forwarded preference before the join.
func applyEnvPref(u *user.User, name, value string) {
	p := u.Prefs()
	switch name {
	case "CHATD_THEME":
		if _, ok := theme.Named(value); ok {
			p.Theme = value
		}
	case "CHATD_TIMESTAMP":
		if mode, ok := user.ParseTimestampMode(value); ok {
			p.Timestamp = mode
		}
	case "CHATD_BELL":
		p.Bell = value == "1" || value == "on"
	}
	u.SetPrefs(p)
}
