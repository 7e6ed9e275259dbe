package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	AttachmentFormatCSV = "csv"
	AttachmentFormatPDF = "pdf"
)

// NotifierPolicy holds the operator-tunable dunning policy. Unlike Config it
// can change between runs without a restart.
type NotifierPolicy struct {
	Subject                string `mapstructure:"subject"`
	AttachmentFormat       string `mapstructure:"attachmentFormat"`
	IncludeCustomerColumns bool   `mapstructure:"includeCustomerColumns"`
	MinDaysOverdue         int    `mapstructure:"minDaysOverdue"`
}

func DefaultNotifierPolicy() NotifierPolicy {
	return NotifierPolicy{
		Subject:                "Overdue Invoice Notification",
		AttachmentFormat:       AttachmentFormatCSV,
		IncludeCustomerColumns: false,
		MinDaysOverdue:         0,
	}
}

type NotifierPolicyHolder struct {
	current atomic.Value // holds NotifierPolicy
}

func NewNotifierPolicyHolder() (*NotifierPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("notifier")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dunning/config") // Volume-mounted config
	v.AddConfigPath("/etc/dunning")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("DUNNING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultNotifierPolicy()
		v.SetDefault("notifier.subject", defaults.Subject)
		v.SetDefault("notifier.attachmentFormat", defaults.AttachmentFormat)
		v.SetDefault("notifier.includeCustomerColumns", defaults.IncludeCustomerColumns)
		v.SetDefault("notifier.minDaysOverdue", defaults.MinDaysOverdue)
	}

	var policy NotifierPolicy
	if err := v.UnmarshalKey("notifier", &policy); err != nil {
		return nil, err
	}
	if err := validateNotifierPolicy(policy); err != nil {
		return nil, err
	}

	holder := &NotifierPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NotifierPolicy
		if err := v.UnmarshalKey("notifier", &updated); err != nil {
			log.Printf("[notifier-policy] reload failed: %v", err)
			return
		}
		if err := validateNotifierPolicy(updated); err != nil {
			log.Printf("[notifier-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[notifier-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticNotifierPolicyHolder returns a holder pinned to the given policy.
// Intended for tests and tooling that bypass the config file.
func NewStaticNotifierPolicyHolder(policy NotifierPolicy) *NotifierPolicyHolder {
	holder := &NotifierPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *NotifierPolicyHolder) Get() NotifierPolicy {
	return h.current.Load().(NotifierPolicy)
}

func validateNotifierPolicy(policy NotifierPolicy) error {
	if strings.TrimSpace(policy.Subject) == "" {
		return errors.New("notifier policy: subject is empty")
	}
	switch policy.AttachmentFormat {
	case AttachmentFormatCSV, AttachmentFormatPDF:
	default:
		return errors.New("notifier policy: attachmentFormat must be csv or pdf")
	}
	if policy.MinDaysOverdue < 0 {
		return errors.New("notifier policy: minDaysOverdue must be >= 0")
	}
	return nil
}
