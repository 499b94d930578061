// internal/workers/capacity/alert-circuit/config.go
package alertcircuit

import (
	"time"

	"capacity-engine/internal/common/config"
)

type Config struct {
	ServiceName  string
	Environment  string
	SNSEnabled   bool
	TopicARN     string
	EmailEnabled bool
	FromEmail    string
	ToEmails     []string
	Cooldown     time.Duration
	Timeout      time.Duration
}

func LoadConfig(app config.AppConfig, cfg config.AlertsConfig) *Config {
	return &Config{
		ServiceName:  app.Name,
		Environment:  app.Environment,
		SNSEnabled:   cfg.SNS.Enabled,
		TopicARN:     cfg.SNS.TopicARN,
		EmailEnabled: cfg.SES.Enabled,
		FromEmail:    cfg.SES.FromEmail,
		ToEmails:     append([]string(nil), cfg.SES.ToEmails...),
		Cooldown:     config.GetDuration(cfg.Cooldown),
		Timeout:      10 * time.Second,
	}
}
