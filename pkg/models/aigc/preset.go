package aigc

import "time"

// defaults of a preset
const (
	DefaultWindowSize    = 4
	DefaultTTL           = time.Hour * 24
	DefaultTemperature   = 0.2
	DefaultTopP          = 0.1
	DefaultCustomerLabel = "Customer"
)

// Message a standalone message, like welcome
type Message struct {
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
	Content string `json:"content" yaml:"content"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Preset is the prompt data of a bot, loaded from yaml
type Preset struct {
	Instruction   string        `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	Model         string        `json:"model,omitempty" yaml:"model,omitempty"`
	WindowSize    int           `json:"windowSize,omitempty" yaml:"windowSize,omitempty"`
	TTL           time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	RefreshEvery  time.Duration `json:"refreshEvery,omitempty" yaml:"refreshEvery,omitempty"`
	Temperature   float32       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP          float32       `json:"topP,omitempty" yaml:"topP,omitempty"`
	CustomerLabel string        `json:"customerLabel,omitempty" yaml:"customerLabel,omitempty"`
	Welcome       *Message      `json:"welcome,omitempty" yaml:"welcome,omitempty"`
	Reference     string        `json:"reference,omitempty" yaml:"reference,omitempty"`
	DisplayName   string        `json:"displayName,omitempty" yaml:"displayName,omitempty"`
}

// SetDefaults fill zero fields
func (p *Preset) SetDefaults() {
	if p.WindowSize == 0 {
		p.WindowSize = DefaultWindowSize
	}
	if p.TTL == 0 {
		p.TTL = DefaultTTL
	}
	if p.RefreshEvery == 0 {
		p.RefreshEvery = p.TTL / 2
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.TopP == 0 {
		p.TopP = DefaultTopP
	}
	if len(p.CustomerLabel) == 0 {
		p.CustomerLabel = DefaultCustomerLabel
	}
}
