package app

import (
	"bytes"
	"net"
	"net/http"
	"testing"
)

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("API_BASE_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

// TestRun_Healthcheck_NoServer はサーバーが起動していない場合に
// healthcheckコマンドがエラーを返すことを検証する。
func TestRun_Healthcheck_NoServer(t *testing.T) {
	// 確実に空いていないポートを得るため、一度listenして即閉じる
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	t.Setenv("SERVER_PORT", port)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err == nil {
		t.Fatal("healthcheck against a closed port should return error")
	}
}

// TestRun_Healthcheck_AgainstRunningServer は/healthを返すサーバーに対して
// healthcheckコマンドが成功することを検証する。
func TestRun_Healthcheck_AgainstRunningServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	go http.Serve(ln, mux)

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	t.Setenv("SERVER_PORT", port)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err != nil {
		t.Fatalf("healthcheck should succeed, got %v", err)
	}
}
