// Package cmd provides the shared bootstrap plumbing every
// credential-engine binary uses: environment-first configuration, an
// optional YAML overlay file, logging/metrics setup, and signal
// handling. The command files themselves stay small, the way Boulder's
// own cmd/shell.go asks every boulder-* binary to be.
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config mirrors spec.md §6's "Configuration (environment)" list.
// Every field has an environment variable as its primary source;
// ReadConfigFile layers a YAML file's values underneath whatever the
// environment already set, for operators who'd rather check config
// into a file than set a dozen env vars by hand.
type Config struct {
	DBDSN             string `yaml:"db_dsn"`
	RedisURL          string `yaml:"redis_url"`
	Env               string `yaml:"env"`
	JWKCurve          string `yaml:"jwk_curve"`
	JWEAlg            string `yaml:"jwe_alg"`
	JWEEnc            string `yaml:"jwe_enc"`
	StatusListChunk   int    `yaml:"statuslist_chunk"`
	ServicePrefix     string `yaml:"service_prefix"`
	OTLPEndpoint      string `yaml:"otlp_endpoint"`
	UICORSOrigins     string `yaml:"ui_cors_origins"`
	IssuerAdminToken  string `yaml:"issuer_admin_token"`
	ListenAddr        string `yaml:"listen_addr"`
	KeyDir            string `yaml:"key_dir"`
	AuditDir          string `yaml:"audit_dir"`
	ArchiveBucket     string `yaml:"archive_bucket"`
	PKCS11Module      string `yaml:"pkcs11_module"`
	PKCS11Token       string `yaml:"pkcs11_token"`
	PKCS11PIN         string `yaml:"pkcs11_pin"`
	PKCS11SignLabel   string `yaml:"pkcs11_sign_label"`
}

// ConfigFromEnv populates a Config from the environment variables
// spec.md §6 names, applying the documented defaults for anything
// left unset.
func ConfigFromEnv() Config {
	c := Config{
		DBDSN:            os.Getenv("DB_DSN"),
		RedisURL:         os.Getenv("REDIS_URL"),
		Env:              getenvDefault("ENV", "dev"),
		JWKCurve:         getenvDefault("JWK_CURVE", "P-256"),
		JWEAlg:           getenvDefault("JWE_ALG", "ECDH-ES"),
		JWEEnc:           getenvDefault("JWE_ENC", "A256GCM"),
		StatusListChunk:  atoiDefault(os.Getenv("STATUSLIST_CHUNK"), 16384),
		ServicePrefix:    getenvDefault("SERVICE_PREFIX", "inbox://"),
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
		UICORSOrigins:    os.Getenv("UI_CORS_ORIGINS"),
		IssuerAdminToken: os.Getenv("ISSUER_ADMIN_TOKEN"),
		ListenAddr:       getenvDefault("LISTEN_ADDR", ":4000"),
		KeyDir:           getenvDefault("KEY_DIR", "/var/lib/credential-engine/keys"),
		AuditDir:         getenvDefault("AUDIT_DIR", "/var/lib/credential-engine/audit"),
		ArchiveBucket:    os.Getenv("ARCHIVE_BUCKET"),
		PKCS11Module:     os.Getenv("PKCS11_MODULE"),
		PKCS11Token:      os.Getenv("PKCS11_TOKEN"),
		PKCS11PIN:        os.Getenv("PKCS11_PIN"),
		PKCS11SignLabel:  os.Getenv("PKCS11_SIGN_LABEL"),
	}
	return c
}

// CORSOrigins splits UICORSOrigins on commas, defaulting to ["*"] when
// unset, per spec.md §6's "empty -> *" rule.
func (c Config) CORSOrigins() []string {
	if strings.TrimSpace(c.UICORSOrigins) == "" {
		return []string{"*"}
	}
	parts := strings.Split(c.UICORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UsesPKCS11 reports whether the issuer #sign key should be backed by
// an HSM rather than the file-based KeyProvider.
func (c Config) UsesPKCS11() bool {
	return c.PKCS11Module != ""
}

func getenvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ReadConfigFile layers filename's YAML content under c, the reverse of
// a typical "file base, env override" layering, because spec.md names
// the environment as the primary configuration source. Only these
// fields are taken from the file: DBDSN and RedisURL when c's are
// empty, Env when c's is still the "dev" default, ArchiveBucket and
// IssuerAdminToken when c's are empty, and the four PKCS11 fields as a
// group when c has no PKCS11Module. Every other field the file sets is
// ignored, so c keeps its environment value or default.
func ReadConfigFile(filename string, c *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	mergeConfig(c, overlay)
	return nil
}

func mergeConfig(c *Config, overlay Config) {
	if c.DBDSN == "" {
		c.DBDSN = overlay.DBDSN
	}
	if c.RedisURL == "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.Env != "" && c.Env == "dev" {
		c.Env = overlay.Env
	}
	if overlay.ArchiveBucket != "" && c.ArchiveBucket == "" {
		c.ArchiveBucket = overlay.ArchiveBucket
	}
	if overlay.PKCS11Module != "" && c.PKCS11Module == "" {
		c.PKCS11Module = overlay.PKCS11Module
		c.PKCS11Token = overlay.PKCS11Token
		c.PKCS11PIN = overlay.PKCS11PIN
		c.PKCS11SignLabel = overlay.PKCS11SignLabel
	}
	if overlay.IssuerAdminToken != "" && c.IssuerAdminToken == "" {
		c.IssuerAdminToken = overlay.IssuerAdminToken
	}
}
