package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/blutspende/orchid"
	"github.com/blutspende/orchid/protocol"
)

type MySessionHandler struct {
	reply protocol.Implementation
}

func (s *MySessionHandler) Disconnected(conn *orchid.Connection) {
	fmt.Println("Disconnected Event")
}

func (s *MySessionHandler) Error(conn *orchid.Connection, errorType orchid.ErrorType, err error) {
	fmt.Println(errorType, err)
}

func (s *MySessionHandler) DataReceived(conn *orchid.Connection, data []byte, receiveTimestamp time.Time) {
	fmt.Printf("From %s received '%s'\n", conn.RemoteAddress(), string(data))

	if s.reply != nil {
		s.reply.Send(conn, []byte(fmt.Sprintf("You are sending from %s", conn.RemoteAddress())))
	}
}

func main() {
	client := flag.Bool("client", false, "read lines from stdin and send them to -address")
	address := flag.String("address", "127.0.0.1:4009", "listen or dial address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	handler := &MySessionHandler{}
	lengthPrefix := protocol.LengthPrefix(handler)

	if *client {
		conn, err := orchid.CreateNewTCPClient(*address, lengthPrefix).Connect(ctx)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if _, err := lengthPrefix.Send(conn, scanner.Bytes()); err != nil {
				fmt.Println(err)
			}
		}
		conn.Close()
		<-conn.Done()
		return
	}

	handler.reply = lengthPrefix
	server := orchid.CreateNewTCPServerInstance(*address,
		lengthPrefix,
		orchid.NoLoadBalancer,
		2) // Max Connections

	if err := server.Start(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	<-ctx.Done()
	server.Stop()
}
