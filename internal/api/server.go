package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"gardenplots/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
)

const grpcStopTimeout = 10 * time.Second

// GRPCServer serves AvailabilityService to map and notification consumers.
type GRPCServer struct {
	server   *grpc.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, gardens GardenReader, logger *zerolog.Logger) (*GRPCServer, error) {
	server, err := newGRPCServer(cfg, gardens, logger)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	s := &GRPCServer{server: server, listener: lis, log: zerolog.Nop()}
	if logger != nil {
		s.log = logger.With().Str("component", "grpc").Logger()
	}
	return s, nil
}

// newGRPCServer wires interceptors and services without binding a port.
func newGRPCServer(cfg *config.APIConfig, gardens GardenReader, logger *zerolog.Logger) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			LoggingUnaryInterceptor(logger),
			NewAuthInterceptor(cfg).Unary(),
		),
	}
	if cfg.GRPC.TLS.Enabled {
		creds, err := serverCredentials(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	server := grpc.NewServer(opts...)
	RegisterAvailabilityServiceServer(server, NewAvailabilityService(gardens))
	if cfg.GRPC.Reflection {
		reflection.Register(server)
	}
	return server, nil
}

// serverCredentials loads the key pair and, for mutual TLS, the client CA pool.
func serverCredentials(cfg config.APITLSConfig) (credentials.TransportCredentials, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("grpc tls: cert_file and key_file are required")
	}
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: load key pair: %w", err)
	}

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}
	if !cfg.RequireClientCert {
		return credentials.NewTLS(tlsCfg), nil
	}

	if cfg.ClientCAFile == "" {
		return nil, errors.New("grpc tls: client_ca_file is required for client certificates")
	}
	pem, err := os.ReadFile(cfg.ClientCAFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: read client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("grpc tls: client ca file has no PEM certificates")
	}
	tlsCfg.ClientCAs = pool
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	return credentials.NewTLS(tlsCfg), nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves until ctx is done, then drains in-flight calls.
func (s *GRPCServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(grpcStopTimeout):
		// зависшие вызовы обрываем
		s.log.Warn().Dur("timeout", grpcStopTimeout).Msg("gRPC drain timed out, forcing stop")
		s.server.Stop()
	}
	return nil
}
