package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mevdschee/chatd/internal/server"
)

const version = "1.0.0"

// countFlag counts repeated occurrences of a boolean flag (-d -d).
type countFlag int

func (c *countFlag) String() string { return strconv.Itoa(int(*c)) }

func (c *countFlag) Set(string) error {
	*c++
	return nil
}

func (c *countFlag) IsBoolFlag() bool { return true }

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 0, "SSH server port")
	bind := flag.String("bind", "", "Address to bind to")
	identity := flag.String("identity", "", "Path to SSH host key (ephemeral if not specified)")
	oplist := flag.String("oplist", "", "Path to operator authorized_keys file")
	whitelist := flag.String("whitelist", "", "Path to whitelist authorized_keys file (enables whitelist mode)")
	motd := flag.String("motd", "", "Path to message-of-the-day file")
	logFile := flag.String("log", "", "Path to chat transcript log")
	showVersion := flag.Bool("V", false, "Print version and exit")
	var debug countFlag
	flag.Var(&debug, "d", "Increase debug verbosity (repeatable)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chatd %s\n", version)
		return
	}

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags override config file values.
	if *port != 0 {
		cfg.Port = *port
	}
	if *bind != "" {
		cfg.Bind = *bind
	}
	if *identity != "" {
		cfg.Identity = *identity
	}
	if *oplist != "" {
		cfg.Oplist = *oplist
	}
	if *whitelist != "" {
		cfg.Whitelist = *whitelist
	}
	if *motd != "" {
		cfg.MotdFile = *motd
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if debug > 0 {
		cfg.Debug = int(debug)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	srv.Stop()
}
