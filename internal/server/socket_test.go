package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/routekit/routekit/internal/routemodule"
)

func init() {
	routemodule.MustRegister(routemodule.Unit{
		Key:         "bodymode",
		Description: "reports whether the request body arrives as a stream",
		Factory: func(_ context.Context, mc *routemodule.ModuleContext) error {
			mc.Router.Post("/bodymode", func(c fiber.Ctx) error {
				req := c.Request()
				stream := req.IsBodyStream()
				if stream {
					io.Copy(io.Discard, req.BodyStream())
				}
				return c.JSON(fiber.Map{"stream": stream})
			})
			return nil
		},
	})
}

// liveServer 是监听在真实端口上的测试服务，client 持有登录后的会话。
type liveServer struct {
	env    *testEnv
	addr   string
	client *http.Client
}

func startLiveServer(t *testing.T, opts envOptions) *liveServer {
	t.Helper()
	if opts.manifests == nil {
		opts.manifests = defaultManifests()
		opts.manifests["50-bodymode.toml"] = `Module = "bodymode"`
	}
	env := newTestEnv(t, opts)

	ln, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	logger, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, env.srv.App, ln, logger) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(15 * time.Second):
			t.Errorf("serve did not stop after cancel")
		}
	})

	jar, _ := cookiejar.New(nil)
	ls := &liveServer{
		env:    env,
		addr:   ln.Addr().String(),
		client: &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = ls.client.Post(ls.url("/login"), "", nil)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("login over socket: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}
	return ls
}

func (ls *liveServer) url(path string) string {
	return "http://" + ls.addr + path
}

func (ls *liveServer) cookieHeader(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(ls.url("/"))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	parts := make([]string, 0, 2)
	for _, ck := range ls.client.Jar.Cookies(u) {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

func (ls *liveServer) post(t *testing.T, path string, body []byte, contentType string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest("POST", ls.url(path), bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	resp, err := ls.client.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

// rawRequest 打开一条 TCP 连接，只写出请求头和 body 的前 sent 字节。
func (ls *liveServer) rawRequest(t *testing.T, path, contentType, cookie string, body []byte, sent int) *net.TCPConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", ls.addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var head strings.Builder
	fmt.Fprintf(&head, "POST %s HTTP/1.1\r\nHost: %s\r\n", path, ls.addr)
	fmt.Fprintf(&head, "Content-Type: %s\r\nContent-Length: %d\r\n", contentType, len(body))
	head.WriteString("Accept: application/json\r\n")
	if cookie != "" {
		fmt.Fprintf(&head, "Cookie: %s\r\n", cookie)
	}
	head.WriteString("\r\n")

	if _, err := conn.Write([]byte(head.String())); err != nil {
		t.Fatalf("write headers: %v", err)
	}
	if _, err := conn.Write(body[:sent]); err != nil {
		t.Fatalf("write body: %v", err)
	}
	return conn.(*net.TCPConn)
}

func multipartBytes(t *testing.T, name string, size int, closed bool) ([]byte, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.WriteField("note", "socket"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(bytes.Repeat([]byte("r"), size))
	if closed {
		w.Close()
	}
	return buf.Bytes(), w.FormDataContentType()
}

func assertUploadDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("upload dir should be empty, found %v", names)
	}
}

func TestSocketHandlerSeesBodyStream(t *testing.T) {
	ls := startLiveServer(t, envOptions{})

	body, contentType := multipartBytes(t, "stream.bin", 256<<10, true)
	resp, respBody := ls.post(t, "/bodymode", body, contentType)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, respBody)
	}
	var result struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal([]byte(respBody), &result); err != nil {
		t.Fatalf("invalid json %s: %v", respBody, err)
	}
	if !result.Stream {
		t.Fatalf("multipart body should reach the handler as a stream")
	}
}

func TestSocketGateAnswersBeforeBodyArrives(t *testing.T) {
	ls := startLiveServer(t, envOptions{})

	body, contentType := multipartBytes(t, "gated.bin", 1<<20, true)
	conn := ls.rawRequest(t, "/upload", contentType, "", body, 16<<10)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("no response while body was still pending: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSocketUploadWithinLimit(t *testing.T) {
	ls := startLiveServer(t, envOptions{limit: "1MB"})

	body, contentType := multipartBytes(t, "fits.bin", 300<<10, true)
	resp, respBody := ls.post(t, "/upload", body, contentType)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, respBody)
	}
	if !strings.Contains(respBody, `"size":307200`) || !strings.Contains(respBody, `"note":"socket"`) {
		t.Fatalf("unexpected result: %s", respBody)
	}
}

func TestSocketOversizeUploadIsRejected(t *testing.T) {
	ls := startLiveServer(t, envOptions{limit: "16KB"})

	body, contentType := multipartBytes(t, "huge.bin", 64<<10, true)
	resp, respBody := ls.post(t, "/upload", body, contentType)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, respBody)
	}
	if !strings.Contains(respBody, "16KB") {
		t.Fatalf("error should reference the size limit: %s", respBody)
	}
	assertUploadDirEmpty(t, ls.env.uploadDir)
}

func TestSocketMalformedBodyIsRejected(t *testing.T) {
	ls := startLiveServer(t, envOptions{})

	body, contentType := multipartBytes(t, "open.bin", 32<<10, false)
	resp, respBody := ls.post(t, "/upload", body, contentType)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, respBody)
	}
	if !strings.Contains(respBody, "malformed multipart body") {
		t.Fatalf("unexpected error body: %s", respBody)
	}
	assertUploadDirEmpty(t, ls.env.uploadDir)
}

func TestSocketDisconnectMidBodyWritesNoResponse(t *testing.T) {
	ls := startLiveServer(t, envOptions{})

	body, contentType := multipartBytes(t, "partial.bin", 1<<20, true)
	conn := ls.rawRequest(t, "/upload", contentType, ls.cookieHeader(t), body, 64<<10)
	if err := conn.CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	data, err := io.ReadAll(conn)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.Fatalf("server kept the connection open after the client went away")
	}
	if len(data) != 0 {
		t.Fatalf("no response expected after disconnect, got %q", data)
	}

	assertUploadDirEmpty(t, ls.env.uploadDir)
	if !ls.env.hasLog(logrus.InfoLevel, "upload aborted by client") {
		t.Fatalf("abort should be logged at info level")
	}
}
