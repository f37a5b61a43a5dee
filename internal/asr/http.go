package asr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"voicekb/internal/audio/ffmpeg"
	"voicekb/internal/audio/wavfile"
	"voicekb/internal/cache"
	"voicekb/internal/config"
	"voicekb/internal/jsonpath"
	"voicekb/internal/logging"
)

// Client uploads segments to a local speech server such as the whisper.cpp
// example server and extracts the transcript from its JSON reply.
type Client struct {
	cfg            config.Config
	httpClient     *http.Client
	store          *cache.Store
	log            *zap.SugaredLogger
	extraConfigMap map[string]interface{}
}

// NewHTTPClient builds the transport used for uploads.
func NewHTTPClient(cfg config.Config) *http.Client {
	tr := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
	}
}

// NewClient creates an upload client and parses ExtraConfig.
func NewClient(cfg config.Config, httpClient *http.Client, store *cache.Store, log *zap.SugaredLogger) (*Client, error) {
	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf("API endpoint is empty")
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	if store == nil {
		store = cache.New(config.TempDir(&cfg), false, log)
	}
	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		store:      store,
		log:        logging.OrNop(log).Named("asr"),
	}
	if cfg.ExtraConfig != "" {
		c.extraConfigMap = make(map[string]interface{})
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &c.extraConfigMap); err != nil {
			return nil, fmt.Errorf("invalid extra-config JSON: %w", err)
		}
	}
	return c, nil
}

// Recognize writes the segment to a temporary WAV file, converts it when the
// configured container is not WAV, and uploads it.
func (c *Client) Recognize(ctx context.Context, samples []float32, language string) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	wavPath := c.store.TempPath("wav")
	if err := wavfile.Write(wavPath, samples, c.cfg.SamplingRate); err != nil {
		return "", err
	}

	uploadPath, outPath := wavPath, ""
	if c.cfg.NeedsConversion() {
		outPath = strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + "." + config.ContainerExt(c.cfg.Container)
		opts := ffmpeg.Options{Codec: c.cfg.Codecs, SampleRate: c.cfg.SamplingRate, BitRate: c.cfg.BitRate}
		if err := ffmpeg.Convert(ctx, opts, wavPath, outPath, c.log); err != nil {
			c.store.Finish(wavPath, outPath, false, nil)
			return "", err
		}
		uploadPath = outPath
	}

	text, raw, err := c.Transcribe(ctx, uploadPath, language)
	c.store.Finish(wavPath, outPath, err == nil, raw)
	return text, err
}

// Transcribe uploads an encoded audio file with exponential backoff and
// returns the extracted text and raw response body.
func (c *Client) Transcribe(ctx context.Context, filePath, language string) (string, []byte, error) {
	try := 0
	delay := c.cfg.RetryBaseDelay
	var lastResp []byte

	for {
		try++
		ok, res := c.doUpload(ctx, filePath, language)
		lastResp = res
		if ok {
			text := jsonpath.ExtractTextFromResponse(res, c.cfg.TextPath)
			return strings.TrimSpace(text), res, nil
		}
		if err := ctx.Err(); err != nil {
			return "", lastResp, err
		}

		c.log.Debugw("upload attempt failed", "attempt", try, "response", formatResponse(res))
		if try >= c.cfg.MaxRetry {
			return "", lastResp, &RetryExhaustedError{Attempts: try, MaxRetry: c.cfg.MaxRetry, LastResponse: lastResp}
		}

		timer := time.NewTimer(time.Duration(delay * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", lastResp, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

func (c *Client) fields(language string) map[string]interface{} {
	base := make(map[string]interface{})
	if c.cfg.Model != "" {
		base["model"] = c.cfg.Model
	}
	if !autoLanguage(language) {
		base["language"] = language
	}
	if c.cfg.Prompt != "" {
		base["prompt"] = c.cfg.Prompt
	}
	base["response_format"] = "json"
	for k, v := range c.extraConfigMap {
		base[k] = v
	}
	return base
}

func (c *Client) doUpload(ctx context.Context, filePath, language string) (bool, []byte) {
	c.log.Debugw("uploading", "file", filePath, "endpoint", c.cfg.APIEndpoint)
	f, err := os.Open(filePath)
	if err != nil {
		return false, []byte(fmt.Sprintf("open file error: %v", err))
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return false, []byte(fmt.Sprintf("create form file error: %v", err))
	}
	if _, err := io.Copy(part, f); err != nil {
		return false, []byte(fmt.Sprintf("copy file error: %v", err))
	}

	for k, v := range c.fields(language) {
		switch val := v.(type) {
		case string:
			_ = writer.WriteField(k, val)
		case bool, float64, int:
			_ = writer.WriteField(k, fmt.Sprintf("%v", val))
		default:
			if b, err := json.Marshal(val); err == nil {
				_ = writer.WriteField(k, string(b))
			} else {
				_ = writer.WriteField(k, fmt.Sprintf("%v", val))
			}
		}
	}
	_ = writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIEndpoint, body)
	if err != nil {
		return false, []byte(fmt.Sprintf("new request error: %v", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("User-Agent", "voicekb/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.log.Debugw("request finished", "duration", time.Since(start))
	if err != nil {
		return false, []byte(fmt.Sprintf("request error: %v", err))
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, respBody
	}
	return true, respBody
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	const maxBin = 256

	if utf8.Valid(b) {
		s := string(b)
		if len(s) > maxText {
			return fmt.Sprintf("%s... (truncated, total %d bytes)", s[:maxText], len(b))
		}
		return s
	}
	if len(b) > maxBin {
		return fmt.Sprintf("<binary %d bytes, prefix hex: %s...>", len(b), hex.EncodeToString(b[:maxBin]))
	}
	return fmt.Sprintf("<binary %d bytes, hex: %s>", len(b), hex.EncodeToString(b))
}
