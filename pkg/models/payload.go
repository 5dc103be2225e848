package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Reserved payload keys. Lookups are case-insensitive.
const (
	KeyID           = "id"
	KeyTitle        = "title"
	KeySubtitle     = "subtitle"
	KeyBody         = "body"
	KeyGroup        = "group"
	KeyCategory     = "category"
	KeyLevel        = "level"
	KeySound        = "sound"
	KeyVolume       = "volume"
	KeyBadge        = "badge"
	KeyCall         = "call"
	KeyIcon         = "icon"
	KeyImage        = "image"
	KeyURL          = "url"
	KeyHost         = "host"
	KeyTTL          = "ttl"
	KeyMarkdown     = "markdown"
	KeyCiphertext   = "ciphertext"
	KeyCipherNumber = "ciphernumber"
	KeySaveAlbum    = "savealbum"
	KeyAPS          = "aps"
)

var reservedKeys = map[string]struct{}{
	KeyID: {}, KeyTitle: {}, KeySubtitle: {}, KeyBody: {}, KeyGroup: {},
	KeyCategory: {}, KeyLevel: {}, KeySound: {}, KeyVolume: {}, KeyBadge: {},
	KeyCall: {}, KeyIcon: {}, KeyImage: {}, KeyURL: {}, KeyHost: {},
	KeyTTL: {}, KeyMarkdown: {}, KeyCiphertext: {}, KeyCipherNumber: {},
	KeySaveAlbum: {}, KeyAPS: {},
}

func IsReservedKey(key string) bool {
	_, ok := reservedKeys[strings.ToLower(key)]
	return ok
}

// Payload is the string-keyed inbound push dictionary.
type Payload map[string]interface{}

func (p Payload) Get(key string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func (p Payload) String(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	return AsString(v)
}

func (p Payload) Int(key string) (int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return AsInt(v)
}

func (p Payload) Float(key string) (float64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

func (p Payload) Bool(key string) (bool, bool) {
	v, ok := p.Get(key)
	if !ok {
		return false, false
	}
	return AsBool(v)
}

func (p Payload) Map(key string) (map[string]interface{}, bool) {
	v, ok := p.Get(key)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}

// WithoutReserved returns the fields that are not interpreted by the pipeline.
func (p Payload) WithoutReserved() map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range p {
		if !IsReservedKey(k) {
			out[k] = v
		}
	}
	return out
}

// AsString accepts strings, numbers and booleans. Empty strings count as absent.
func AsString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), true
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

func AsInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
		if f, err := val.Float64(); err == nil {
			return int(f), true
		}
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func AsFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// AsBool accepts booleans, positive numbers and the usual yes/no spellings.
func AsBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "y", "yes", "1":
			return true, true
		case "false", "n", "no", "0":
			return false, true
		}
		return false, false
	default:
		if n, ok := AsInt(val); ok {
			return n > 0, true
		}
	}
	return false, false
}
