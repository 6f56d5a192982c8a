package settings

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// consts
const (
	Name = "Showroom"
)

// Config ...
type Config struct {
	Name    string `ignored:"true"`
	Version string `ignored:"true"`

	Develop      bool     `envconfig:"DEV"`
	HTTPListen   string   `envconfig:"HTTP_LISTEN" default:":5001"`
	SessionStore string   `envconfig:"SESSION_STORE" default:"memory"` // memory | redis
	RedisURI     string   `envconfig:"redis_uri" default:"redis://localhost:6379/1"`
	HistoryMax   int64    `envconfig:"HISTORY_MAX"` // 0: unbounded
	AllowOrigins []string `envconfig:"allow_origins" default:"*"`
	RateLimit    string   `envconfig:"RATE_LIMIT" default:"30-M"`

	AuthRequired bool   `envconfig:"AUTH_REQUIRED"`
	CookieName   string `envconfig:"Cookie_Name" default:"shrm"`
	CookiePath   string `envconfig:"Cookie_Path" default:"/"`
	CookieDomain string `envconfig:"Cookie_Domain"`

	LLMProvider     string        `envconfig:"LLM_PROVIDER" default:"gemini"` // gemini | openai
	GoogleAPIKey    string        `envconfig:"GOOGLE_API_KEY"`
	OpenAIAPIKey    string        `envconfig:"openAi_Api_Key"`
	OpenAIBaseURL   string        `envconfig:"openAi_Base_URL"`
	ChatModel       string        `envconfig:"CHAT_MODEL" default:"models/gemini-2.0-flash-001"`
	GenerateTimeout time.Duration `envconfig:"GENERATE_TIMEOUT" default:"60s"`
	UploadTimeout   time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"5m"`
	Streaming       bool          `envconfig:"STREAMING"`

	PresetFile string `envconfig:"preset_file"`
}

var (
	// Current 当前配置
	Current = new(Config)
)

func init() {
	if err := envconfig.Process(Name, Current); err != nil {
		log.Printf("envconfig process fail: %s", err)
	}

	Current.Name = Name
	Current.Version = version
}

// Usage 打印配置帮助
func Usage() error {
	log.Printf("ver: %s", Current.Version)
	return envconfig.Usage(Current.Name, Current)
}

// InDevelop ...
func InDevelop() bool {
	return Current.Develop
}

// AllowAllOrigins ...
func AllowAllOrigins() bool {
	return 0 == len(Current.AllowOrigins) ||
		1 == len(Current.AllowOrigins) && Current.AllowOrigins[0] == "*"
}
