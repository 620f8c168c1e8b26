// Command ca is the Client Proxy entrypoint: a small command-line tool
// that opens a session against a running TA and issues one command,
// mirroring the minimalism of the teacher's cmd/caesar/main.go.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/ca"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/config"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taproto"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("AirAccount CA connecting to %s (env=%s)\n", cfg.CA.SocketPath, cfg.Env)

	dialTimeout := time.Duration(cfg.CA.DialTimeoutMs) * time.Millisecond
	client, err := ca.Open(cfg.CA.SocketPath, dialTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open session: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	out, err := client.InvokeWithRetry(taproto.CmdHelloWorld, nil, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hello world failed: %v\n", err)
		os.Exit(1)
	}

	rd := taproto.NewReader(out)
	greeting, err := rd.GetString()
	if err != nil {
		fmt.Fprintf(os.Stderr, "malformed response: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(greeting)
}
