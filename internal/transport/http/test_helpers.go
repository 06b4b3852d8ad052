package http

import (
	"bytes"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tripline/chat-server/internal/auth"
	blobfs "github.com/tripline/chat-server/internal/blob/fs"
	"github.com/tripline/chat-server/internal/chat"
	"github.com/tripline/chat-server/internal/config"
	logpkg "github.com/tripline/chat-server/internal/log"
	"github.com/tripline/chat-server/internal/realtime"
	"github.com/tripline/chat-server/internal/store/sqlite"
)

// testServer bundles the running handler with the pieces tests poke at.
type testServer struct {
	handler   stdhttp.Handler
	url       string
	jwtConfig *auth.JWTConfig
	services  Services
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	broker := realtime.NewMemoryBroker()
	logger := logpkg.Nop()

	blobs, err := blobfs.New(t.TempDir(), "http://localhost:8080/uploads")
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	messages := chat.NewMessageLog(st, broker, logger)
	svc := Services{
		Directory: chat.NewDirectory(st, logger),
		Messages:  messages,
		Presence:  chat.NewPresence(broker, logger),
		Groups:    chat.NewGroups(st, broker, logger),
		ChatList:  chat.NewChatList(st, logger),
		Uploader:  chat.NewUploader(blobs, messages, 1<<20, logger),
		JWTConfig: jwtConfig,
	}

	server := NewServer(svc, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{
		handler:   server.Handler,
		url:       ts.URL,
		jwtConfig: jwtConfig,
		services:  svc,
	}
}

// token mints a JWT for the given user, the way the external account
// service would.
func (s *testServer) token(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := auth.GenerateToken(s.jwtConfig, userID, name, "")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// do runs a JSON request against the handler and returns the recorder.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", resp.Body.String(), err)
	}
	return out
}
