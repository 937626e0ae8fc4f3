package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/openclearing/marketapi"
)

const defaultPort = 5000

// ClearingServer accepts clearing requests over vsock.
type ClearingServer struct {
	port     uint32
	signer   *ReceiptSigner
	attester EnclaveAttester
}

// NewClearingServer creates a server for the given vsock port
func NewClearingServer(port uint32) *ClearingServer {
	return &ClearingServer{port: port}
}

func (s *ClearingServer) init() error {
	signer, err := NewReceiptSigner()
	if err != nil {
		return fmt.Errorf("failed to initialize receipt signer: %w", err)
	}
	s.signer = signer
	log.Printf("INFO: ReceiptSigner initialized")

	attester, err := getEnclaveAttester()
	if err != nil {
		log.Printf("WARN: %v (receipts will not be attested)", err)
	} else {
		s.attester = attester
	}
	return nil
}

func (s *ClearingServer) Start() error {
	if err := s.init(); err != nil {
		return err
	}

	maxWorkers, err := getRequiredEnvInt("CLEARINGHOUSE_MAX_WORKERS")
	if err != nil {
		return fmt.Errorf("failed to get max workers config: %w", err)
	}

	listener, err := vsock.Listen(s.port, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: Clearing server listening on vsock port %d", s.port)

	return s.Serve(listener, maxWorkers)
}

// Serve accepts connections until the listener is closed. At most maxWorkers
// connections are handled at once; others are closed immediately.
func (s *ClearingServer) Serve(listener net.Listener, maxWorkers int) error {
	if maxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive, got %d", maxWorkers)
	}
	semaphore := make(chan struct{}, maxWorkers)

	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", maxWorkers)

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *ClearingServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var buf bytes.Buffer
	_, err := io.Copy(&buf, conn)
	if err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	response, requestType := s.handleRequest(context.Background(), buf.Bytes())

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	} else {
		log.Printf("INFO: Successfully sent response for %s", requestType)
	}
}

func errorResponse(format string, args ...any) map[string]any {
	return map[string]any{
		"type":    "error",
		"message": fmt.Sprintf(format, args...),
	}
}

// handleRequest dispatches one raw request and returns the response to encode
// along with the request type.
func (s *ClearingServer) handleRequest(ctx context.Context, data []byte) (any, string) {
	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &baseReq); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return errorResponse("Failed to decode request: %v", err), ""
	}

	log.Printf("INFO: Received request type: %s", baseReq.Type)

	switch baseReq.Type {
	case "ping":
		log.Printf("INFO: Responding to ping with pong")
		return map[string]any{
			"type":      "pong",
			"message":   "Clearing server is healthy",
			"timestamp": time.Now().Unix(),
		}, baseReq.Type

	case "clearing_request":
		var req marketapi.ClearingRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("ERROR: Failed to decode clearing request: %v", err)
			return errorResponse("Failed to decode clearing request: %v", err), baseReq.Type
		}
		return ProcessClearing(ctx, s.attester, s.signer, req), baseReq.Type

	default:
		return errorResponse("Unknown request type: %s", baseReq.Type), baseReq.Type
	}
}

// Helper function for required environment variable parsing
func getRequiredEnvInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}

// getEnvPort reads an optional vsock port, falling back to def.
func getEnvPort(key string, def uint32) (uint32, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	port, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid port)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, port)
	return uint32(port), nil
}

func main() {
	port, err := getEnvPort("CLEARINGHOUSE_PORT", defaultPort)
	if err != nil {
		log.Fatal(err)
	}
	server := NewClearingServer(port)
	log.Fatal(server.Start())
}
