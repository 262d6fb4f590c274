package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/analysis/intent"
	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	"github.com/rasa-ai/rasa/backend/internal/config"
	"github.com/rasa-ai/rasa/backend/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, "development")
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	baseURL := flag.String("url", defaultURL(cfg.Server.Addr), "后端地址")
	message := flag.String("message", "", "发送给助手的消息")
	userID := flag.String("user", "1", "用户 ID")
	lang := flag.String("lang", language.Default, "界面语言")
	timeout := flag.Duration("timeout", 60*time.Second, "请求超时时间")
	flag.Parse()

	if strings.TrimSpace(*message) == "" {
		flag.Usage()
		logger.Fatal("请通过 -message 指定要发送的消息")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := probe(ctx, os.Stdout, *baseURL, *userID, *message, *lang, logger); err != nil {
		logger.Fatal("probe failed", zap.Error(err))
	}
}

func defaultURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// probe posts message to the raw stream endpoint, classifies the chunks as
// they arrive and prints every event followed by the final result.
func probe(ctx context.Context, out io.Writer, baseURL, userID, message, lang string, logger *zap.Logger) error {
	body, err := json.Marshal(map[string]string{"message": message, "userId": userID, "lang": lang})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	classifier := intent.NewClassifier(lang)
	chunks := 0
	buf := make([]byte, 512)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunks++
			for _, ev := range classifier.Feed(string(buf[:n])) {
				printEvent(out, ev)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			logger.Warn("stream interrupted", zap.Error(readErr))
			for _, ev := range classifier.Fail("[stream interrupted]") {
				printEvent(out, ev)
			}
			break
		}
	}

	result := classifier.Finish(message)
	logger.Info("stream finished",
		zap.Int("chunks", chunks),
		zap.String("kind", string(result.Kind)),
		zap.String("lang", result.Lang),
		zap.Duration("elapsed", time.Since(started)),
	)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "final: %s\n", encoded)
	return nil
}

func printEvent(out io.Writer, ev intent.Event) {
	switch ev.Type {
	case intent.EventEmergency:
		fmt.Fprintf(out, "[emergency] %s: %s\n", ev.Emergency.Title, ev.Emergency.Message)
	case intent.EventNavigation:
		fmt.Fprintf(out, "[navigation] %s\n", ev.Target)
	default:
		fmt.Fprintf(out, "[%s] %d chars: %q\n", ev.Lang, len(ev.Text), lastLine(ev.Text))
	}
}

func lastLine(text string) string {
	if i := strings.LastIndexByte(strings.TrimRight(text, "\n"), '\n'); i >= 0 {
		return text[i+1:]
	}
	return text
}
