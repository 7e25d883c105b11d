package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestServer(t *testing.T, bots ...string) (*Server, string, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")
	logger := discardLogger()

	srv := NewServer(sockPath, NewResolver(newTestRegistry(t, bots...), logger), logger)
	ctx, cancel := context.WithCancel(context.Background())

	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start server: %v", err)
	}

	return srv, sockPath, cancel
}

func sendRequest(t *testing.T, sockPath string, data []byte) Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", sockPath, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Signal we're done writing so server's ReadAll returns.
	conn.(*net.UnixConn).CloseWrite()

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func authenticateRequest(t *testing.T, initData string) []byte {
	t.Helper()
	payload, _ := json.Marshal(AuthenticatePayload{InitData: initData})
	data, err := json.Marshal(Request{Version: CurrentVersion, Action: ActionAuthenticate, Payload: payload})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return data
}

var testFields = map[string]string{"auth_date": "1700000000", "query_id": "q1"}

func TestServer_AuthenticateSuccess(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A", "B")
	defer func() { cancel(); srv.Shutdown() }()

	resp := sendRequest(t, sockPath, authenticateRequest(t, signFor(t, "B", testFields)))

	if !resp.OK {
		t.Fatalf("expected ok, got error: %s", resp.Error)
	}
	if resp.Bot != "B" {
		t.Errorf("expected bot B, got %s", resp.Bot)
	}
	if _, err := uuid.Parse(resp.ID); err != nil {
		t.Errorf("expected uuid ID, got %q", resp.ID)
	}
}

func TestServer_AuthenticateForged(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	resp := sendRequest(t, sockPath, authenticateRequest(t, signFor(t, "Z", testFields)))
	if resp.OK {
		t.Fatal("expected failure for forged payload")
	}
	if resp.Code != FailureUnauthenticated {
		t.Errorf("expected code unauthenticated, got %s", resp.Code)
	}
	if resp.Bot != "" {
		t.Errorf("expected no bot, got %s", resp.Bot)
	}
}

func TestServer_AuthenticateMalformed(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	resp := sendRequest(t, sockPath, authenticateRequest(t, "foo&bar=baz"))
	if resp.OK {
		t.Fatal("expected failure for malformed payload")
	}
	if resp.Code != FailureBadRequest {
		t.Errorf("expected code bad_request, got %s", resp.Code)
	}
}

func TestServer_Bots(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A", "B")
	defer func() { cancel(); srv.Shutdown() }()

	resp := sendRequest(t, sockPath, []byte(`{"version":1,"action":"bots"}`))
	if !resp.OK {
		t.Fatalf("expected ok, got error: %s", resp.Error)
	}
	if strings.Join(resp.Bots, ",") != "A,B" {
		t.Errorf("expected bots A,B, got %v", resp.Bots)
	}
}

func TestServer_ResponseNeverContainsToken(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	conn, err := net.DialTimeout("unix", sockPath, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.Write(authenticateRequest(t, signFor(t, "A", testFields)))
	conn.(*net.UnixConn).CloseWrite()

	buf := make([]byte, 4096)
	n, _ := conn.Read(buf)
	if strings.Contains(string(buf[:n]), "tok-A") {
		t.Errorf("response leaked token: %s", buf[:n])
	}
}

func TestServer_Client(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	client := NewClient(sockPath)
	resp, err := client.Authenticate(signFor(t, "A", testFields))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !resp.OK || resp.Bot != "A" {
		t.Fatalf("expected bot A, got %+v", resp)
	}

	resp, err = client.Bots()
	if err != nil {
		t.Fatalf("client bots: %v", err)
	}
	if len(resp.Bots) != 1 || resp.Bots[0] != "A" {
		t.Errorf("expected bots [A], got %v", resp.Bots)
	}
}

func TestServer_ClientNoServer(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	if _, err := client.Bots(); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestServer_InvalidJSON(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	resp := sendRequest(t, sockPath, []byte(`{bad`))
	if resp.OK {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestServer_UnknownAction(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	data := []byte(`{"version":1,"action":"delete"}`)
	resp := sendRequest(t, sockPath, data)
	if resp.OK {
		t.Fatal("expected error for unknown action")
	}
	if !strings.Contains(resp.Error, "unknown action") {
		t.Errorf("unexpected error: %s", resp.Error)
	}
}

func TestServer_PayloadTooLarge(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	big := authenticateRequest(t, strings.Repeat("x", MaxPayloadBytes))
	resp := sendRequest(t, sockPath, big)
	if resp.OK {
		t.Fatal("expected error for oversized payload")
	}
	if !strings.Contains(resp.Error, "byte limit") {
		t.Errorf("unexpected error: %s", resp.Error)
	}
}

func TestServer_SocketPermissions(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")
	defer func() { cancel(); srv.Shutdown() }()

	info, err := os.Stat(sockPath)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("expected socket permissions 0600, got %o", perm)
	}
}

func TestServer_DirectoryPermissions(t *testing.T) {
	// Use /tmp for a shorter path; macOS Unix socket paths max 104 chars.
	dir, err := os.MkdirTemp("/tmp", "osd")
	if err != nil {
		t.Fatalf("mkdirtemp: %v", err)
	}
	defer os.RemoveAll(dir)

	subdir := filepath.Join(dir, "sub")
	sockPath := filepath.Join(subdir, "t.sock")
	logger := discardLogger()

	srv := NewServer(sockPath, NewResolver(newTestRegistry(t, "A"), logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Shutdown()

	info, err := os.Stat(subdir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	perm := info.Mode().Perm()
	if perm != 0700 {
		t.Errorf("expected directory permissions 0700, got %o", perm)
	}
}

func TestServer_StaleSocketCleanup(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	// Create a stale socket file.
	os.WriteFile(sockPath, []byte("stale"), 0600)

	logger := discardLogger()
	srv := NewServer(sockPath, NewResolver(newTestRegistry(t, "A"), logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start failed with stale socket: %v", err)
	}
	defer srv.Shutdown()

	// Verify server works.
	resp := sendRequest(t, sockPath, authenticateRequest(t, signFor(t, "A", testFields)))
	if !resp.OK {
		t.Fatalf("expected ok after stale cleanup, got: %s", resp.Error)
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A")

	cancel()
	srv.Shutdown()

	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Error("expected socket file to be removed after shutdown")
	}
}

func TestServer_ConcurrentConnections(t *testing.T) {
	srv, sockPath, cancel := setupTestServer(t, "A", "B", "C")
	defer func() { cancel(); srv.Shutdown() }()

	bots := []string{"A", "B", "C"}
	payloads := make([]string, 15)
	for i := range payloads {
		fields := map[string]string{"query_id": fmt.Sprintf("q%d", i), "auth_date": "1700000000"}
		payloads[i] = signFor(t, bots[i%len(bots)], fields)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(payloads))
	for i := range payloads {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := bots[i%len(bots)]
			resp, err := NewClient(sockPath).Authenticate(payloads[i])
			if err != nil {
				errs <- err
				return
			}
			if resp.Bot != want {
				errs <- fmt.Errorf("request %d: expected %s, got %+v", i, want, resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
