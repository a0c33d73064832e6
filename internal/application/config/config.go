package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"8000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:8000"`
	StaticDir  string `env:"STATIC_DIR" envDefault:"web"`
	StunURL    string `env:"STUN_URL" envDefault:"stun:stun.l.google.com:19302"`

	JournalBuffer int `env:"JOURNAL_BUFFER" envDefault:"256"`

	WebSocket    WebSocketConfig
	CoturnServer CoturnConfig
	Turn         TurnConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
}

// WebSocketConfig - настройки сигнального соединения
type WebSocketConfig struct {
	SendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"64"`
	PingPeriod     time.Duration `env:"WS_PING_PERIOD" envDefault:"30s"`
	PongWait       time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	WriteWait      time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"meshroom"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

// Enabled - журнал участников пишется только при настроенной базе
func (p *PostgresConfig) Enabled() bool {
	return p.URL != "" || p.Host != ""
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	PresenceTTL time.Duration `env:"REDIS_PRESENCE_TTL" envDefault:"24h"`
}

func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type CoturnConfig struct {
	Host     string `env:"COTURN_HOST"`
	Username string `env:"COTURN_USERNAME"`
	Password string `env:"COTURN_PASSWORD"`

	// Secret - нужен для генерации временных кредов для фронта
	Secret string `env:"COTURN_SECRET"`
}

func (c *CoturnConfig) Enabled() bool {
	return c.Host != ""
}

// TurnURLs - адреса coturn для UDP и TCP
func (c *CoturnConfig) TurnURLs() []string {
	return []string{
		fmt.Sprintf("turn:%s?transport=udp", c.Host),
		fmt.Sprintf("turn:%s?transport=tcp", c.Host),
	}
}

// TurnConfig - встроенный TURN сервер, альтернатива внешнему coturn
type TurnConfig struct {
	PublicIP string `env:"TURN_PUBLIC_IP"`
	Port     int    `env:"TURN_PORT" envDefault:"3478"`
	Realm    string `env:"TURN_REALM" envDefault:"meshroom"`
	Secret   string `env:"TURN_SECRET"`
}

func (t *TurnConfig) Enabled() bool {
	return t.PublicIP != "" && t.Secret != ""
}

func (t *TurnConfig) URLs() []string {
	return []string{
		fmt.Sprintf("turn:%s:%d?transport=udp", t.PublicIP, t.Port),
		fmt.Sprintf("turn:%s:%d?transport=tcp", t.PublicIP, t.Port),
	}
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &c, nil
}
