package cli

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jh125486/rubricscore/pkg/client"
)

// DefaultTimeout bounds every request made through a Service client.
const DefaultTimeout = 30 * time.Second

// Service holds global dependencies that can be injected into commands.
// It separates runtime dependencies from configuration (args).
type Service struct {
	// Transport is wrapped with the bearer token. If nil, a TLS transport is used.
	Transport http.RoundTripper
	Timeout   time.Duration
	Stdin     io.Reader
	Stdout    io.Writer
}

// NewService creates a new Service with default implementations.
func NewService() *Service {
	return &Service{
		Timeout: DefaultTimeout,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	}
}

// HTTPClient returns an HTTP client that authenticates with token.
func (s *Service) HTTPClient(token string) *http.Client {
	return &http.Client{
		Timeout:   s.Timeout,
		Transport: client.NewAuthTransport(token, s.Transport),
	}
}

// RubricClient returns a client for assignmentID on the server named by args.
func (s *Service) RubricClient(args ServerArgs, assignmentID string) *client.Client {
	return client.New(s.HTTPClient(args.Token), args.ServerURL, assignmentID)
}
