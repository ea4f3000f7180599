package autoclean

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Outlier handling modes
const (
	OutlierNone         = "none"
	OutlierClipIQR      = "clip_iqr"
	OutlierRemoveIQR    = "remove_iqr"
	OutlierClipZScore   = "clip_zscore"
	OutlierRemoveZScore = "remove_zscore"
)

// Missing value methods
const (
	MissingMedian     = "median"
	MissingMean       = "mean"
	MissingFFillBFill = "ffill_bfill"
	MissingNone       = "none"
)

// Case methods
const (
	CaseNone  = "none"
	CaseLower = "lower"
	CaseUpper = "upper"
	CaseTitle = "title"
)

var (
	outlierOptions        = []string{OutlierNone, OutlierClipIQR, OutlierRemoveIQR, OutlierClipZScore, OutlierRemoveZScore}
	missingNumericOptions = []string{MissingMedian, MissingMean, MissingNone}
	missingOtherOptions   = []string{MissingFFillBFill, MissingNone}
	caseOptions           = []string{CaseNone, CaseLower, CaseUpper, CaseTitle}
)

// Config is the per-session auto-clean configuration
type Config struct {
	OutlierHandling        string  `json:"outlier_handling"`
	OutlierIQRFactor       float64 `json:"outlier_iqr_factor"`
	OutlierZScoreThreshold float64 `json:"outlier_zscore_threshold"`
	MissingNumericMethod   string  `json:"missing_numeric_method"`
	MissingOtherMethod     string  `json:"missing_other_method"`
	CaseChangeMethod       string  `json:"case_change_method"`
	TrimWhitespace         bool    `json:"trim_whitespace"`
	ConvertNumeric         bool    `json:"convert_numeric"`
	ConvertDatetime        bool    `json:"convert_datetime"`
	ConvertCategory        bool    `json:"convert_category"`
}

// DefaultConfig returns the configuration used until a session saves its own
func DefaultConfig() Config {
	return Config{
		OutlierHandling:        OutlierNone,
		OutlierIQRFactor:       1.5,
		OutlierZScoreThreshold: 3.0,
		MissingNumericMethod:   MissingMedian,
		MissingOtherMethod:     MissingFFillBFill,
		CaseChangeMethod:       CaseNone,
		TrimWhitespace:         true,
		ConvertNumeric:         true,
		ConvertDatetime:        true,
		ConvertCategory:        true,
	}
}

// Load returns the defaults overlaid with a previously saved raw JSON config; saved values win
// wherever they are valid.
func Load(saved []byte) Config {
	if len(saved) == 0 {
		return DefaultConfig()
	}
	cfg, _ := Parse(saved)
	return cfg
}

// Parse validates a raw config object key by key. Missing or invalid keys keep their default;
// the returned list names every key that was rejected.
func Parse(raw []byte) (Config, []string) {
	cfg := DefaultConfig()
	if !gjson.ValidBytes(raw) {
		return cfg, []string{"config"}
	}
	root := gjson.ParseBytes(raw)
	var rejected []string

	choose := func(key string, options []string, dst *string) {
		r := root.Get(key)
		if !r.Exists() {
			return
		}
		v := strings.ToLower(strings.TrimSpace(r.String()))
		for _, opt := range options {
			if v == opt {
				*dst = opt
				return
			}
		}
		rejected = append(rejected, key)
	}
	positive := func(key string, dst *float64) {
		r := root.Get(key)
		if !r.Exists() {
			return
		}
		var v float64
		switch r.Type {
		case gjson.Number:
			v = r.Num
		case gjson.String:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
			if err != nil {
				rejected = append(rejected, key)
				return
			}
			v = parsed
		default:
			rejected = append(rejected, key)
			return
		}
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			rejected = append(rejected, key)
			return
		}
		*dst = v
	}
	toggle := func(key string, dst *bool) {
		r := root.Get(key)
		if !r.Exists() {
			return
		}
		switch r.Type {
		case gjson.True, gjson.False:
			*dst = r.Bool()
		case gjson.Null:
			*dst = false
		case gjson.Number:
			*dst = r.Num != 0
		case gjson.String:
			switch strings.ToLower(strings.TrimSpace(r.Str)) {
			case "true", "on", "yes", "1":
				*dst = true
			case "false", "off", "no", "0", "":
				*dst = false
			default:
				rejected = append(rejected, key)
			}
		default:
			rejected = append(rejected, key)
		}
	}

	choose("outlier_handling", outlierOptions, &cfg.OutlierHandling)
	positive("outlier_iqr_factor", &cfg.OutlierIQRFactor)
	positive("outlier_zscore_threshold", &cfg.OutlierZScoreThreshold)
	choose("missing_numeric_method", missingNumericOptions, &cfg.MissingNumericMethod)
	choose("missing_other_method", missingOtherOptions, &cfg.MissingOtherMethod)
	choose("case_change_method", caseOptions, &cfg.CaseChangeMethod)
	toggle("trim_whitespace", &cfg.TrimWhitespace)
	toggle("convert_numeric", &cfg.ConvertNumeric)
	toggle("convert_datetime", &cfg.ConvertDatetime)
	toggle("convert_category", &cfg.ConvertCategory)
	return cfg, rejected
}

// Validate reports whether a request body is a JSON object at all
func Validate(raw []byte) bool {
	return gjson.ValidBytes(raw) && gjson.ParseBytes(raw).IsObject()
}
