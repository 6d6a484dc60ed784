// bottyd – the PTY server: owns every agent's pseudo-terminal, maintains
// its screen and transcript, and serves spawn/send/tail/attach/etc.
// requests over a Unix domain socket.
//
// Usage:
//
//	bottyd [--socket PATH] [--config FILE] [--exit-when-empty]
//
// Socket resolution, in order: --socket flag, socket_path from the
// --config file, $BOTTY_SOCKET, $XDG_RUNTIME_DIR/botty/botty.sock,
// /tmp/botty-$UID.sock. bottyd is
// normally started automatically by botty; you do not need to run it
// by hand.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ianremillard/botty/internal/config"
	"github.com/ianremillard/botty/internal/daemon"
)

func main() {
	socketFlag := flag.String("socket", "", "Unix socket path (env: BOTTY_SOCKET)")
	configPath := flag.String("config", "", "path to botty.yaml")
	exitWhenEmpty := flag.Bool("exit-when-empty", false, "shut down once every spawned agent has exited")
	rows := flag.Int("default-rows", 0, "default PTY rows when a spawn doesn't specify one")
	cols := flag.Int("default-cols", 0, "default PTY cols when a spawn doesn't specify one")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("bottyd: %v", err)
	}
	if *rows > 0 {
		cfg.DefaultRows = *rows
	}
	if *cols > 0 {
		cfg.DefaultCols = *cols
	}
	if *exitWhenEmpty {
		cfg.ExitWhenEmpty = true
	}

	socketPath := *socketFlag
	if socketPath == "" {
		socketPath = cfg.SocketPath
	}
	if socketPath == "" {
		socketPath = resolveSocketPath()
	}

	if err := prepareSocketDir(socketPath); err != nil {
		log.Fatalf("bottyd: %v", err)
	}

	s := daemon.New(cfg)

	if cfg.ExitWhenEmpty {
		go s.ExitWhenEmptyWatch(500 * time.Millisecond)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("bottyd: received %v, shutting down", sig)
		s.Shutdown()
	}()

	if err := s.Run(socketPath); err != nil {
		log.Fatalf("bottyd: %v", err)
	}
}

// resolveSocketPath implements the precedence from spec §6:
// $BOTTY_SOCKET, else $XDG_RUNTIME_DIR/botty/botty.sock, else
// /tmp/botty-$UID.sock.
func resolveSocketPath() string {
	if p := os.Getenv("BOTTY_SOCKET"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "botty", "botty.sock")
	}
	return fmt.Sprintf("/tmp/botty-%d.sock", os.Getuid())
}

// prepareSocketDir creates the socket's parent directory with 0700
// permissions if it doesn't already exist. The socket file itself is
// tightened to 0600 by daemon.Server.Run once it has bound the listener.
func prepareSocketDir(socketPath string) error {
	dir := filepath.Dir(socketPath)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
