package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/flavluc/chat/internal/client"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <ip> <port> <nick>\n", os.Args[0])
		os.Exit(2)
	}

	addr := net.JoinHostPort(os.Args[1], os.Args[2])
	nick := os.Args[3]

	conn, err := client.Dial(addr, nick, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := client.Run(conn, nick, addr); err != nil {
		fmt.Fprintf(os.Stderr, "client error: %v\n", err)
		os.Exit(1)
	}
}
