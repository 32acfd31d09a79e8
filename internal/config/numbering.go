package config

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	"github.com/spf13/viper"
)

// NumberingConfig controls how transaction and document numbers are rendered.
// The sequence values themselves live in the counters table; this only shapes
// the human-facing formatting.
type NumberingConfig struct {
	// TransactionPrefix is prepended to allocated transaction numbers ("T1024").
	TransactionPrefix string `mapstructure:"transactionPrefix"`
	// DocPrefixes maps a document code to its file/number prefix.
	DocPrefixes map[string]string `mapstructure:"docPrefixes"`
	// CounterKeys lists the counter rows that may be read or overwritten.
	// Anything else is rejected so a typo in an admin call cannot create an
	// orphan sequence.
	CounterKeys []string `mapstructure:"counterKeys"`
}

func DefaultNumberingConfig() NumberingConfig {
	return NumberingConfig{
		TransactionPrefix: "T",
		CounterKeys:       []string{numberingdomain.CounterTransactionLastNumber},
		DocPrefixes: map[string]string{
			"invoice":                          "INV",
			"invoice.normal":                   "INV",
			"invoice.commercial":               "INV-COM",
			"invoice.foreign.commercial":       "INV-COM",
			"invoice.proforma":                 "INV-PRO",
			"invoice.syrian.entry":             "INV-SE",
			"invoice.syrian.transit":           "INV-ST",
			"invoice.syrian.intermediary":      "INV-SI",
			"packing_list":                     "PKL",
			"packing_list.export.simple":       "PKL",
			"packing_list.export.with_dates":   "PKL",
			"packing_list.export.with_line_id": "PKL",
			"certificate_of_origin":            "COO",
			"form_a":                           "FORMA",
			"form.a":                           "FORMA",
			"cmr":                              "CMR",
		},
	}
}

// PrefixForDocCode resolves the prefix for a document code, falling back to
// the last dotted segment upper-cased and truncated to six characters.
func (c NumberingConfig) PrefixForDocCode(docCode string) string {
	if prefix, ok := c.DocPrefixes[docCode]; ok {
		return prefix
	}
	parts := strings.Split(docCode, ".")
	fallback := strings.ToUpper(parts[len(parts)-1])
	if len(fallback) > 6 {
		fallback = fallback[:6]
	}
	return fallback
}

type NumberingConfigHolder struct {
	current atomic.Value // holds NumberingConfig
}

// NewNumberingConfigHolder loads numbering.yml and watches it for changes, so
// operators can adjust prefixes without restarting every client.
func NewNumberingConfigHolder() (*NumberingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("numbering")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/logiport/config") // Volume-mounted config
	v.AddConfigPath("/etc/logiport")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("LOGIPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNumberingConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("numbering.transactionPrefix", defaults.TransactionPrefix)
		v.SetDefault("numbering.docPrefixes", defaults.DocPrefixes)
		v.SetDefault("numbering.counterKeys", defaults.CounterKeys)
	}

	var cfg NumberingConfig
	if err := v.UnmarshalKey("numbering", &cfg); err != nil {
		return nil, err
	}
	cfg = mergeNumberingDefaults(cfg, defaults)

	holder := &NumberingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NumberingConfig
		if err := v.UnmarshalKey("numbering", &updated); err != nil {
			log.Printf("[numbering-config] reload failed: %v", err)
			return
		}
		holder.current.Store(mergeNumberingDefaults(updated, defaults))
		log.Printf("[numbering-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *NumberingConfigHolder) Get() NumberingConfig {
	return h.current.Load().(NumberingConfig)
}

// Set replaces the active configuration. Used by tests.
func (h *NumberingConfigHolder) Set(cfg NumberingConfig) {
	h.current.Store(mergeNumberingDefaults(cfg, DefaultNumberingConfig()))
}

func mergeNumberingDefaults(cfg, defaults NumberingConfig) NumberingConfig {
	if len(cfg.DocPrefixes) == 0 {
		cfg.DocPrefixes = defaults.DocPrefixes
	}
	if len(cfg.CounterKeys) == 0 {
		cfg.CounterKeys = defaults.CounterKeys
	}
	// The transaction counter must stay reachable no matter what the
	// operator lists.
	if !containsKey(cfg.CounterKeys, numberingdomain.CounterTransactionLastNumber) {
		cfg.CounterKeys = append(cfg.CounterKeys, numberingdomain.CounterTransactionLastNumber)
	}
	return cfg
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// KnownCounterKey reports whether key is part of the configured counter set.
func (c NumberingConfig) KnownCounterKey(key string) bool {
	return containsKey(c.CounterKeys, key)
}
