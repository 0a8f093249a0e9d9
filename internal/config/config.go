package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	SessionHashKey  []byte // base64
	SessionBlockKey []byte // base64

	CodeEncKey []byte // 32 bytes for AES-256-GCM, base64

	CaptchaURL    string
	CaptchaUserID string
	CaptchaAPIKey string
	CaptchaTag    string
	CaptchaLength int

	MonitorCountries []int
	MaxOrdersPerPass int

	PagesDir  string
	AcceptDir string

	Headless bool

	HTTPTimeout time.Duration
}

func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:    envDefault("HTTP_ADDR", ":8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),

		CaptchaURL:    envDefault("CAPTCHA_URL", "https://api.apitruecaptcha.org/one/gettext"),
		CaptchaUserID: strings.TrimSpace(os.Getenv("CAPTCHA_USER_ID")),
		CaptchaAPIKey: strings.TrimSpace(os.Getenv("CAPTCHA_API_KEY")),
		CaptchaTag:    envDefault("CAPTCHA_TAG", "conl"),
		CaptchaLength: envInt("CAPTCHA_CODE_LENGTH", 6),

		MaxOrdersPerPass: envInt("MAX_ORDERS_PER_PASS", 200),

		PagesDir:  envDefault("PAGES_DIR", defaultPagesDir()),
		AcceptDir: envDefault("ACCEPT_DIR", ""),

		Headless: strings.TrimSpace(os.Getenv("HEADLESS")) == "1",

		HTTPTimeout: 60 * time.Second,
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	cfg.MonitorCountries, err = parseCountries(os.Getenv("MONITOR_COUNTRIES"))
	if err != nil {
		return cfg, err
	}

	cfg.CodeEncKey, err = mustB64("CODE_ENC_KEY")
	if err != nil {
		return cfg, err
	}
	if len(cfg.CodeEncKey) != 32 {
		return cfg, fmt.Errorf("CODE_ENC_KEY must decode to 32 bytes (got %d)", len(cfg.CodeEncKey))
	}

	// Session keys are only needed by the web UI; the server command checks
	// for them, everything else runs without.
	cfg.SessionHashKey, _ = optB64("SESSION_HASH_KEY")
	cfg.SessionBlockKey, _ = optB64("SESSION_BLOCK_KEY")

	return cfg, nil
}

func (c Config) RequireSessionKeys() error {
	if len(c.SessionHashKey) == 0 || len(c.SessionBlockKey) == 0 {
		return fmt.Errorf("SESSION_HASH_KEY and SESSION_BLOCK_KEY are required (base64); run `visitsched keys`")
	}
	return nil
}

func (c Config) RequireCaptchaCreds() error {
	if c.CaptchaUserID == "" || c.CaptchaAPIKey == "" {
		return fmt.Errorf("CAPTCHA_USER_ID and CAPTCHA_API_KEY are required")
	}
	return nil
}

func parseCountries(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("MONITOR_COUNTRIES: bad country id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func defaultPagesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "saved_pages"
	}
	return home + "/saved_pages"
}

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func envInt(k string, d int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func mustB64(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, fmt.Errorf("%s is required (base64)", k)
	}
	return decodeB64(k, v)
}

func optB64(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, nil
	}
	return decodeB64(k, v)
}

func decodeB64(k, v string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
