package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dicomstore/dicomstore/dimse"
	"github.com/dicomstore/dicomstore/interfaces"
	"github.com/dicomstore/dicomstore/pdu"
)

// Option configures a Server instance.
type Option func(*Server)

// WithLogger overrides the logger used by the server.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithReadTimeout sets the read timeout for client connections.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the write timeout for client connections.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.WriteTimeout = timeout
	}
}

// WithMaxConnections bounds how many associations the server serves
// concurrently. Once the limit is reached, the accept loop holds the
// connection it just accepted, and accepts no further ones, until a slot
// frees up. A value <= 0 means unbounded (the default).
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.MaxConnections = n
	}
}

// WithPromiscuous accepts presentation contexts for abstract syntaxes
// outside the PDU layer's static and storage catalogs, provided a
// supportable transfer syntax is still offered.
func WithPromiscuous(promiscuous bool) Option {
	return func(s *Server) {
		s.Promiscuous = promiscuous
	}
}

// Server exposes a reusable DICOM listener that wires the DIMSE and PDU layers.
type Server struct {
	AETitle        string
	Handler        interfaces.ServiceHandler
	Logger         zerolog.Logger
	ReadTimeout    time.Duration // Read deadline set once per accepted connection (default: 0, none)
	WriteTimeout   time.Duration // Write deadline set once per accepted connection (default: 0, none)
	MaxConnections int           // Max concurrent associations (default: unbounded)
	Promiscuous    bool          // Accept unregistered abstract syntaxes (default: false)
}

// New builds a Server with the provided AE title and handler.
func New(aeTitle string, handler interfaces.ServiceHandler, opts ...Option) *Server {
	srv := &Server{AETitle: aeTitle, Handler: handler, Logger: log.Logger}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// ListenAndServe listens on the given address and serves until the context is done or an error occurs.
func ListenAndServe(ctx context.Context, address, aeTitle string, handler interfaces.ServiceHandler, opts ...Option) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	defer listener.Close()

	srv := New(aeTitle, handler, opts...)
	return srv.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled or an unrecoverable error occurs.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("dicomserver: listener is required")
	}
	if s == nil {
		return errors.New("dicomserver: server is nil")
	}
	if s.Handler == nil {
		return errors.New("dicomserver: handler is required")
	}
	if s.AETitle == "" {
		return errors.New("dicomserver: AE title is required")
	}

	logger := s.logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	logger.Info().Str("address", listener.Addr().String()).Str("ae_title", s.AETitle).Msg("DICOM server listening")

	var sem chan struct{}
	if s.MaxConnections > 0 {
		sem = make(chan struct{}, s.MaxConnections)
	}

	var (
		wg       sync.WaitGroup
		serveErr error
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.Warn().Err(err).Msg("accept timeout")
				continue
			}
			serveErr = err
			break
		}

		if sem != nil {
			sem <- struct{}{}
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			s.handleConnection(ctx, c, logger)
		}(conn)
	}

	wg.Wait()

	if serveErr != nil {
		return serveErr
	}

	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, logger zerolog.Logger) {
	logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("accepted DICOM connection")

	if s.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			logger.Warn().Err(err).Msg("failed to set read deadline")
		}
	}
	if s.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
			logger.Warn().Err(err).Msg("failed to set write deadline")
		}
	}

	service := dimse.NewService(s.Handler, &logger)
	adapter := &dimseHandlerAdapter{service: service}
	layer := pdu.NewLayer(conn, adapter, s.AETitle, &logger)
	layer.SetPromiscuous(s.Promiscuous)

	connErr := layer.HandleConnection()
	if connErr != nil && ctx.Err() == nil {
		logger.Warn().Err(connErr).Str("remote_addr", conn.RemoteAddr().String()).Msg("DIMSE connection ended")
		s.flushPartial(service, logger)
	} else {
		logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("DIMSE connection closed")
	}
}

// flushPartial gives a handler that implements interfaces.PartialDatasetFlusher
// a chance to persist a dataset that was still being reassembled when the
// connection ended.
func (s *Server) flushPartial(service *dimse.Service, logger zerolog.Logger) {
	flusher, ok := s.Handler.(interfaces.PartialDatasetFlusher)
	if !ok {
		return
	}
	data, contextID, ok := service.FlushPartial()
	if !ok {
		return
	}
	logger.Warn().Int("bytes", len(data)).Uint8("context_id", contextID).Msg("flushing partial dataset from terminated connection")
	flusher.FlushPartialDataset(data, contextID)
}

func (s *Server) logger() zerolog.Logger {
	return s.Logger
}

type dimseHandlerAdapter struct {
	service *dimse.Service
}

func (a *dimseHandlerAdapter) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, layer *pdu.Layer) error {
	return a.service.HandleDIMSEMessage(presContextID, msgCtrlHeader, data, layer)
}
