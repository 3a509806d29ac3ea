package session

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/dicomstore/dicomstore/dimse"
	"github.com/dicomstore/dicomstore/server"
	"github.com/dicomstore/dicomstore/services"
)

// ReceiverConfig configures a Receiver's listening address and storage.
type ReceiverConfig struct {
	AETitle        string
	Address        string
	OutputDir      string
	MaxConnections int
	Promiscuous    bool
	Logger         zerolog.Logger
}

// Receiver accepts associations and stores every C-STORE dataset it
// receives to disk, answering C-ECHO for connectivity checks along the
// way. It is a thin assembly of server.Server, services.Registry and
// StoreService; all protocol handling lives in those packages.
type Receiver struct {
	config ReceiverConfig
	srv    *server.Server
}

// NewReceiver builds a Receiver ready to Serve. It creates OutputDir if it
// does not already exist.
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	store, err := NewStoreService(config.OutputDir, config.Logger)
	if err != nil {
		return nil, err
	}

	registry := services.NewRegistry()
	registry.RegisterHandler(dimse.CEchoRQ, services.NewEchoService())
	registry.RegisterHandler(dimse.CStoreRQ, store)

	srv := server.New(config.AETitle, registry,
		server.WithLogger(config.Logger),
		server.WithMaxConnections(config.MaxConnections),
		server.WithPromiscuous(config.Promiscuous),
	)

	return &Receiver{config: config, srv: srv}, nil
}

// ListenAndServe listens on the receiver's configured address and serves
// associations until ctx is cancelled or an unrecoverable error occurs.
func (r *Receiver) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", r.config.Address)
	if err != nil {
		return err
	}
	defer listener.Close()

	return r.srv.Serve(ctx, listener)
}
