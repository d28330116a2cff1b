// Package orchid runs one asynchronous read pipeline per stream connection: it receives
// bytes from the socket, accumulates them, and lets a pluggable FramingStrategy decide when
// a complete application message has arrived.
//
// Each Connection owns a ReadLoop and a ReadState. The loop cycles through
//
//	None -> AwaitingData -> (ReadAllData -> AwaitingData)* -> Error | LostConnection
//
// Error and LostConnection are terminal. A transport error or a protocol violation calls
// OnError once, every terminal path shuts the socket down and calls OnDisconnect once.
// Frames that arrive together are consumed back to back without another receive.
//
// Server Example:
//
//	strategy := protocol.LengthPrefix(handler)
//	server := orchid.CreateNewTCPServerInstance(":4009", strategy, orchid.NoLoadBalancer, 100)
//	if err := server.Start(); err != nil {
//	    // handle error
//	}
//	defer server.Stop()
//
// Single connection Example:
//
//	conn, err := orchid.NewConnection(accepted, strategy)
//	if err != nil {
//	    // handle error
//	}
//	go conn.Serve(ctx)
//	<-conn.Done()
//
// Concrete wire formats live in the protocol package.
package orchid
