package server

import (
	"bytes"
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/ws"
	"chat-relay/runtime"
	"chat-relay/services"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const testKey = "secret-key-123"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func sequentialNames() domain.NameGenerator {
	var mu sync.Mutex
	next := 1000
	return func() domain.DisplayName {
		mu.Lock()
		defer mu.Unlock()
		name := domain.DisplayName(fmt.Sprintf("User%d", next))
		next++
		return name
	}
}

// newTestServer wires the whole stack on a disk store under t.TempDir().
func newTestServer(t *testing.T, maxUploadBytes int64) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	registry := runtime.NewRegistry(runtime.WithNameGenerator(sequentialNames()))
	c, err := codec.New(codec.NameXOR, testKey)
	require.NoError(t, err)
	router := runtime.NewRouter(log, registry, c, runtime.WithPlaintextEcho(true))

	store, err := storage.NewDiskStore(t.TempDir(), log)
	require.NoError(t, err)

	events := ws.NewHandler(log, router, 16)
	srv := NewServer(log, "", Deps{
		Events:         events,
		Uploads:        services.NewUploadService(log, store, maxUploadBytes),
		Blobs:          store,
		Participants:   registry,
		MaxUploadBytes: maxUploadBytes,
		StaticDir:      t.TempDir(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		events.CloseAll()
		ts.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func next(t *testing.T, conn *websocket.Conn) event.Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	evt, err := event.DecodeOutbound(frame)
	require.NoError(t, err)
	return evt
}

func send(t *testing.T, conn *websocket.Conn, in event.Inbound) {
	t.Helper()
	frame, err := event.EncodeInbound(in)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestServer_ChatScenario(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, 10<<20)

	// Given A connected alone
	a := dial(t, ts)
	joined := next(t, a).(event.UserJoined)
	req.Equal("User1000", joined.Username)
	req.Equal([]string{"User1000"}, joined.Users)

	// When B connects
	b := dial(t, ts)

	// Then both see B joining with the full list
	for _, conn := range []*websocket.Conn{a, b} {
		joined := next(t, conn).(event.UserJoined)
		req.Equal("User1001", joined.Username)
		req.Equal([]string{"User1000", "User1001"}, joined.Users)
	}

	// When B starts typing and A says hi
	send(t, b, event.TypingStarted{})
	typing := next(t, a).(event.UserTyping)
	req.Equal("User1001", typing.Username)
	send(t, a, event.ChatMessageRequest{Message: "hi"})

	// Then both receive the same encoded message, and B never saw its own typing notice
	var ids []string
	for _, conn := range []*websocket.Conn{a, b} {
		msg, ok := next(t, conn).(event.ChatMessage)
		req.True(ok)
		req.Equal("User1000", msg.Username)
		req.Equal("text", msg.Type)
		req.Equal("hi", msg.OriginalMessage)
		plain, err := codec.Decrypt(msg.Message, testKey)
		req.NoError(err)
		req.Equal("hi", plain)
		ids = append(ids, msg.ID)
	}
	req.Equal(ids[0], ids[1])

	// When B hangs up
	req.NoError(b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = b.Close()

	// Then A sees B leave
	left := next(t, a).(event.UserLeft)
	req.Equal("User1001", left.Username)
	req.Equal([]string{"User1000"}, left.Users)
}

func TestServer_UnknownFrameKeepsConnection(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, 10<<20)

	a := dial(t, ts)
	next(t, a)

	// Given garbage and an unknown event
	req.NoError(a.WriteMessage(websocket.TextMessage, []byte("not json")))
	req.NoError(a.WriteMessage(websocket.TextMessage, []byte(`{"event":"shout","data":"x"}`)))

	// When a valid message follows
	send(t, a, event.ChatMessageRequest{Message: "still here"})

	// Then it is relayed normally
	msg := next(t, a).(event.ChatMessage)
	req.Equal("still here", msg.OriginalMessage)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_UploadAndDownload(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, 10<<20)

	// Given a png posted to the upload endpoint
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{7}, 2048)...)
	body, contentType := multipartBody(t, "file", "cat.png", content)
	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	req.NoError(err)

	// Then the stored file is described
	req.Equal(http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	req.Equal(true, out["success"])
	req.Equal("cat.png", out["originalName"])
	req.EqualValues(len(content), out["size"])
	filename := out["filename"].(string)
	req.Equal("/uploads/"+filename, out["url"])

	// When it is fetched back
	resp, err = http.Get(ts.URL + out["url"].(string))
	req.NoError(err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	req.NoError(err)

	// Then the exact bytes come back with their type
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("image/png", resp.Header.Get("Content-Type"))
	req.Equal(content, got)
}

func TestServer_UploadRejections(t *testing.T) {
	ts := newTestServer(t, 4096)

	testCases := []struct {
		name       string
		field      string
		filename   string
		content    []byte
		wantStatus int
		wantError  string
	}{
		{"missing file", "", "", nil, http.StatusBadRequest, "No file uploaded"},
		{"executable", "file", "x.exe", []byte("MZ\x90\x00"), http.StatusUnsupportedMediaType, "File type not allowed"},
		{"too large", "file", "big.png", append(append([]byte{}, pngHeader...), make([]byte, 8192)...), http.StatusRequestEntityTooLarge, "File too large"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			body, contentType := multipartBody(t, tc.field, tc.filename, tc.content)

			resp, err := http.Post(ts.URL+"/upload", contentType, body)
			req.NoError(err)

			req.Equal(tc.wantStatus, resp.StatusCode)
			req.Equal(tc.wantError, decodeBody(t, resp)["error"])
		})
	}
}

func TestServer_DownloadMissing(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, 10<<20)

	resp, err := http.Get(ts.URL + "/uploads/nope.png")
	req.NoError(err)

	req.Equal(http.StatusNotFound, resp.StatusCode)
	req.Equal("Not found", decodeBody(t, resp)["error"])
}

func TestServer_Health(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, 10<<20)

	// Given one participant
	a := dial(t, ts)
	next(t, a)

	resp, err := http.Get(ts.URL + "/healthz")
	req.NoError(err)

	req.Equal(http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	req.EqualValues(1, out["participants"])
	req.Equal("User1000", out["oldest_session"])
	req.NotEmpty(out["oldest_joined_at"])
}
