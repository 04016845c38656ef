package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/vkareh/slirc"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s <config file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := slirc.LoadConfig(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	var ln net.Listener
	if cfg.UnixSocket != "" {
		// A stale socket from a previous run would make the bind fail.
		os.Remove(cfg.UnixSocket)
		ln, err = net.Listen("unix", cfg.UnixSocket)
		if err == nil {
			err = os.Chmod(cfg.UnixSocket, 0600)
		}
	} else {
		ln, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	}
	if err != nil {
		log.Fatalf("failed to bind listener: %v", err)
	}
	log.Printf("server listening on %v", ln.Addr())

	srv := slirc.NewServer(cfg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("shutting down")
		ln.Close()
		srv.Stop()
	}()

	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Printf("serving failed: %v", err)
		}
	}()

	srv.Run()
}
