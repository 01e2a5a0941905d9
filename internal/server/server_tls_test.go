// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestCert creates a self-signed server certificate with openssl
// and returns the cert and key paths.
func generateTestCert(t *testing.T, dir string) (string, string) {
	t.Helper()

	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	cmd := exec.Command("openssl", "req", "-x509", "-newkey", "rsa:2048", "-nodes",
		"-keyout", keyPath, "-out", certPath, "-days", "1",
		"-subj", "/CN=localhost",
		"-addext", "subjectAltName=DNS:localhost,IP:127.0.0.1")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("openssl unavailable, skipping TLS test: %v\n%s", err, output)
	}
	return certPath, keyPath
}

func TestTLSConfigWithWebConfigFile(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := generateTestCert(t, dir)

	webConfig := fmt.Sprintf(`
tls_server_config:
  cert_file: %s
  key_file: %s
`, certPath, keyPath)
	webConfigFile := filepath.Join(dir, "web.yaml")
	require.NoError(t, os.WriteFile(webConfigFile, []byte(webConfig), 0o644))

	port := findFreePort()
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	server := NewAPIServer(
		WithListenAddress([]string{addr}),
		WithWebConfig(webConfigFile),
		WithLogger(discardLogger()),
	)
	assert.NoError(t, server.Init())

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, server.Register("/api/test", "Test API", "Test API endpoint", testHandler))

	errCh := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	go func() {
		errCh <- server.Run(ctx)
	}()

	time.Sleep(300 * time.Millisecond)

	// client trusting only the generated cert
	certPEM, err := os.ReadFile(certPath)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(certPEM))

	client := &http.Client{
		Timeout: 500 * time.Millisecond,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}

	resp, err := client.Get(fmt.Sprintf("https://%s/", addr))
	require.NoError(t, err, "HTTPS request to root endpoint failed")
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	// plain HTTP must be rejected on a TLS listener
	plainClient := &http.Client{Timeout: 500 * time.Millisecond}
	plainResp, err := plainClient.Get(fmt.Sprintf("http://%s/", addr))
	if err == nil {
		_ = plainResp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, plainResp.StatusCode)
	}

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Server didn't shut down within expected timeframe")
	}
}