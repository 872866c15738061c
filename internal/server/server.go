package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/devwelkin/hermes-static/internal/mimetype"
	"github.com/devwelkin/hermes-static/internal/pages"
	"github.com/devwelkin/hermes-static/internal/request"
	"github.com/devwelkin/hermes-static/internal/resolver"
	"github.com/devwelkin/hermes-static/internal/response"
	"github.com/devwelkin/hermes-static/internal/routes"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8000
	DefaultRoot        = "./static/"
	DefaultWorkers     = 10
	DefaultReadTimeout = 10 * time.Second
)

// Config is everything a Server needs. It is read once by New.
type Config struct {
	Host string
	Port int
	// ServeDir switches the server to directory-browsing mode when set.
	ServeDir string
	// Root holds the static assets and route targets in route mode.
	Root   string
	Routes routes.Table
	// Workers caps how many connections are handled at once.
	Workers int
	// ReadTimeout is the idle time allowed between reads of a request.
	// Zero means DefaultReadTimeout, negative disables it.
	ReadTimeout time.Duration
	// ErrorTemplate is an optional html/template file for error pages.
	ErrorTemplate string
	Logger        *log.Logger
}

// Server holds the state for our http server
type Server struct {
	cfg      Config
	log      *log.Logger
	resolver *resolver.Resolver
	pages    *pages.Builder

	listener net.Listener
	sem      *semaphore.Weighted
	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	acceptWg sync.WaitGroup
	connWg   sync.WaitGroup
}

// New builds a Server without listening. Use Serve to accept connections or
// ServeConn to handle one directly.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	res, err := resolver.New(cfg.Root, cfg.ServeDir, cfg.Routes)
	if err != nil {
		return nil, err
	}
	builder, err := pages.NewBuilder(cfg.ErrorTemplate)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		resolver: res,
		pages:    builder,
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Serve starts listening on cfg.Host:cfg.Port and accepts connections in the
// background.
func Serve(cfg Config) (*Server, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.listener = listener

	s.acceptWg.Add(1)
	go s.listen()

	return s, nil
}

// Addr is the address the server listens on, or nil before Serve.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting connections and waits for in-flight ones to finish.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.acceptWg.Wait()
	s.connWg.Wait()
	return err
}

// listen is the main accept loop. A connection is only accepted once a
// worker slot is free; until then it waits in the listen backlog.
func (s *Server) listen() {
	defer s.acceptWg.Done()

	for {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.sem.Release(1)
			if s.closed.Load() {
				s.log.Println("listener closed, server shutting down.")
				return
			}
			s.log.Printf("ERROR: accepting connection: %v", err)
			continue
		}

		s.connWg.Add(1)
		go func() {
			defer s.connWg.Done()
			defer s.sem.Release(1)
			s.ServeConn(conn)
		}()
	}
}

// exchange is what gets logged about one request.
type exchange struct {
	client string
	method string
	path   string
}

func (e exchange) String() string {
	return fmt.Sprintf("%s - %s %s", e.client, e.method, e.path)
}

// ServeConn reads one request from conn, answers it and closes conn.
// Nothing that goes wrong here escapes to the caller.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()

	ex := exchange{client: clientHost(conn.RemoteAddr()), method: "-", path: "-"}
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("ERROR: %s: panic while handling connection: %v", ex, r)
		}
	}()

	// 1. read the raw message
	raw, err := request.ReadMessage(conn, s.cfg.ReadTimeout)
	if err != nil {
		switch {
		case errors.Is(err, request.ErrEmptyRequest):
			// peer connected and left
		case errors.Is(err, os.ErrDeadlineExceeded):
			s.log.Printf("WARN: connection timeout for client %s", ex.client)
		case errors.Is(err, request.ErrHeaderTooLarge):
			s.send(conn, ex, s.errorResponse(response.StatusRequestHeaderFieldsTooLarge), false)
		case errors.Is(err, request.ErrBodyTooLarge):
			s.log.Printf("ERROR: %s: %v", ex, err)
			s.send(conn, ex, s.errorResponse(response.StatusContentTooLarge), false)
		case errors.Is(err, request.ErrMalformedRequest):
			s.log.Printf("ERROR: %s: incorrect http request format: %v", ex, err)
			s.send(conn, ex, s.errorResponse(response.StatusBadRequest), false)
		default:
			s.log.Printf("WARN: reading request from %s: %v", ex.client, err)
		}
		return
	}

	// 2. parse it
	req, err := request.Parse(raw)
	if err != nil {
		s.log.Printf("ERROR: %s: incorrect http request format: %v", ex, err)
		s.send(conn, ex, s.errorResponse(response.StatusBadRequest), false)
		return
	}

	ex.method = req.RequestLine.Method
	ex.path = req.RequestLine.RequestTarget
	if decoded, ok := resolver.DecodePath(ex.path); ok {
		ex.path = decoded
	}

	// 3. dispatch on method
	switch req.RequestLine.Method {
	case "GET", "HEAD":
		res := s.safeRespond(ex, req)
		s.send(conn, ex, res, req.RequestLine.Method == "HEAD")
	default:
		s.send(conn, ex, s.errorResponse(response.StatusNotImplemented), false)
	}
}

// safeRespond turns a panic during resolution into a 500.
func (s *Server) safeRespond(ex exchange, req *request.Request) (res *response.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("ERROR: %s: panic while resolving: %v", ex, r)
			res = s.errorResponse(response.StatusInternalServerError)
		}
	}()

	res, err := s.respond(req)
	if err != nil {
		s.log.Printf("ERROR: %s: %v", ex, err)
	}
	return res
}

// respond resolves a GET or HEAD request. The error, if any, explains an
// error response and is only meant for the log.
func (s *Server) respond(req *request.Request) (*response.Response, error) {
	accept, _ := req.Headers.Get("accept")
	target := s.resolver.Resolve(req.RequestLine.RequestTarget, accept)

	switch target.Kind {
	case resolver.UnsupportedMedia:
		return s.errorResponse(response.StatusUnsupportedMediaType), nil
	case resolver.NotFound:
		return s.errorResponse(response.StatusNotFound), nil
	case resolver.DirectoryListing:
		page, ok := pages.DirectoryListing(target.Path, target.URLPath)
		if !ok {
			return s.errorResponse(response.StatusNotFound), fmt.Errorf("listing %s failed", target.Path)
		}
		return &response.Response{StatusCode: response.StatusOK, Body: page, ContentType: mimetype.HTML}, nil
	case resolver.RoutedFile, resolver.StaticFile:
		return s.fileResponse(target.Path)
	default:
		return s.errorResponse(response.StatusInternalServerError), fmt.Errorf("unhandled resource kind %s", target.Kind)
	}
}

// fileResponse reads a file whole. Text types must be valid utf-8.
func (s *Server) fileResponse(path string) (*response.Response, error) {
	contentType := mimetype.ByPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.errorResponse(response.StatusNotFound), fmt.Errorf("file vanished: %w", err)
		}
		return s.errorResponse(response.StatusInternalServerError), fmt.Errorf("reading file: %w", err)
	}

	if !mimetype.IsBinary(contentType) && !utf8.Valid(data) {
		return s.errorResponse(response.StatusInternalServerError), fmt.Errorf("%s is not valid utf-8 text (%s)", path, contentType)
	}

	return &response.Response{StatusCode: response.StatusOK, Body: data, ContentType: contentType}, nil
}

// errorResponse builds the error page for code. If the page itself cannot be
// rendered the result is a 500 with an empty body.
func (s *Server) errorResponse(code response.StatusCode) *response.Response {
	page, err := s.pages.ErrorPage(code)
	if err != nil {
		s.log.Printf("ERROR: %v", err)
		return &response.Response{StatusCode: response.StatusInternalServerError, ContentType: mimetype.HTML}
	}
	return &response.Response{StatusCode: code, Body: page, ContentType: mimetype.HTML}
}

// send writes res and logs the outcome. Write failures are logged only.
func (s *Server) send(conn net.Conn, ex exchange, res *response.Response, omitBody bool) {
	err := response.NewWriter(conn).WriteResponse(res, omitBody)
	if err != nil {
		if response.IsPeerGone(err) {
			s.log.Printf("WARN: %s: connection terminated by client before response was sent", ex)
			return
		}
		s.log.Printf("ERROR: %s: writing response: %v", ex, err)
		return
	}
	s.log.Printf("%s %d", ex, res.StatusCode)
}

func clientHost(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
