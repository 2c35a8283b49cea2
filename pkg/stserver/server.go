package stserver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/discovery"
	"github.com/hadaraza/Client-Server-HR/pkg/metrics"
	"github.com/hadaraza/Client-Server-HR/pkg/pool"
	"github.com/hadaraza/Client-Server-HR/pkg/wire"
)

const (
	wakeInterval    = time.Second
	maxBindAttempts = 32
)

// task is one independent request handler, queued onto the worker pool by
// the dispatch loops.
type task func(context.Context)

// Server owns the two service sockets and the offer broadcaster. The
// dispatch loops never block on a per-client operation; every request runs
// as its own task on a bounded worker pool.
type Server struct {
	cfg       *internal.ServerConfig
	collector *metrics.ServerCollector

	udpConn *net.UDPConn
	tcpLn   *net.TCPListener
	udpPort uint16
	tcpPort uint16

	bufPool   *pool.BufferPool
	closeOnce sync.Once
}

// NewServer binds the UDP service socket and the TCP listener on random
// ports from the configured range. Failing to bind after bounded retries is
// fatal to startup; nothing is leaked on the way out.
func NewServer(cfg *internal.ServerConfig, collector *metrics.ServerCollector) (*Server, error) {
	if collector == nil {
		collector = metrics.NewServerCollector("")
	}

	udpConn, udpPort, err := bindUDP(cfg.PortRangeMin, cfg.PortRangeMax)
	if err != nil {
		return nil, err
	}
	tcpLn, tcpPort, err := bindTCP(cfg.PortRangeMin, cfg.PortRangeMax)
	if err != nil {
		udpConn.Close()
		return nil, err
	}

	internal.Info("server listening", internal.Fields{
		"udp_port": udpPort,
		"tcp_port": tcpPort,
	})

	return &Server{
		cfg:       cfg,
		collector: collector,
		udpConn:   udpConn,
		tcpLn:     tcpLn,
		udpPort:   udpPort,
		tcpPort:   tcpPort,
		bufPool:   pool.NewBufferPool(wire.PayloadHeaderLen + wire.SegmentSize),
	}, nil
}

func (s *Server) UDPPort() uint16 { return s.udpPort }
func (s *Server) TCPPort() uint16 { return s.tcpPort }

// Run blocks until ctx is cancelled, then drains in-flight handlers and
// releases the sockets.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	offer := wire.Offer{UDPPort: s.udpPort, TCPPort: s.tcpPort}
	interval := time.Duration(s.cfg.BroadcastInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	broadcaster, err := discovery.NewBroadcaster(ctx, offer, s.cfg.BroadcastAddr, s.cfg.OfferPort, interval)
	if err != nil {
		return fmt.Errorf("start broadcaster: %w", err)
	}
	broadcaster.OnBroadcast = s.collector.ObserveOffer

	wp := pool.NewWorkerPool[task](s.cfg.MaxHandlers)
	poolDone := make(chan struct{})
	go func() {
		wp.Run(ctx, func(ctx context.Context, t task) { t(ctx) })
		close(poolDone)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		broadcaster.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.udpLoop(ctx, wp)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tcpLoop(ctx, wp)
	}()
	if s.cfg.MetricsPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveMetrics(ctx)
		}()
	}

	wg.Wait()
	wp.CloseIngress()
	<-poolDone
	return nil
}

// Close releases both service sockets. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.udpConn.Close()
		s.tcpLn.Close()
	})
}

// udpLoop receives speed test requests and queues one handler per valid
// datagram. Malformed or foreign datagrams are dropped without comment
// beyond a debug line and a counter.
func (s *Server) udpLoop(ctx context.Context, wp *pool.WorkerPool[task]) {
	buf := make([]byte, 2048)
	var req wire.Request

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = s.udpConn.SetReadDeadline(time.Now().Add(wakeInterval))
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Exceptional condition on the listening socket: take it out of
			// service, the TCP side is unaffected.
			internal.Error("udp service socket fault", internal.Fields{
				internal.FieldError: err.Error(),
			})
			s.udpConn.Close()
			return
		}

		if _, err := req.Decode(buf[:n]); err != nil {
			s.collector.ObserveDrop()
			internal.Debug("discarding invalid udp request", internal.Fields{
				internal.FieldAddr:  addr.String(),
				internal.FieldBytes: n,
			})
			continue
		}

		fileSize := req.FileSize
		peer := *addr
		t := func(ctx context.Context) {
			s.handleUDPRequest(ctx, &peer, fileSize)
		}
		select {
		case wp.Ingress() <- t:
		case <-ctx.Done():
			return
		}
	}
}

// tcpLoop accepts connections and queues one handler per client.
func (s *Server) tcpLoop(ctx context.Context, wp *pool.WorkerPool[task]) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = s.tcpLn.SetDeadline(time.Now().Add(wakeInterval))
		conn, err := s.tcpLn.AcceptTCP()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			internal.Error("tcp listener fault", internal.Fields{
				internal.FieldError: err.Error(),
			})
			s.tcpLn.Close()
			return
		}

		t := func(ctx context.Context) {
			s.handleTCPConn(ctx, conn)
		}
		select {
		case wp.Ingress() <- t:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

func (s *Server) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.MetricsPort),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	internal.Info("metrics endpoint up", internal.Fields{
		internal.FieldPort: s.cfg.MetricsPort,
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		internal.Warn("metrics endpoint failed", internal.Fields{
			internal.FieldError: err.Error(),
		})
	}
}

func bindUDP(min, max int) (*net.UDPConn, uint16, error) {
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		port := min + rand.Intn(max-min)
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
		if err != nil {
			continue
		}
		return conn, uint16(port), nil
	}
	return nil, 0, fmt.Errorf("no free udp port in [%d, %d) after %d attempts", min, max, maxBindAttempts)
}

func bindTCP(min, max int) (*net.TCPListener, uint16, error) {
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		port := min + rand.Intn(max-min)
		ln, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: port})
		if err != nil {
			continue
		}
		return ln, uint16(port), nil
	}
	return nil, 0, fmt.Errorf("no free tcp port in [%d, %d) after %d attempts", min, max, maxBindAttempts)
}
