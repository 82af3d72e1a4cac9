package resource

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyType is a qualifier dimension.
type KeyType int32

const (
	Language    KeyType = 0
	Region      KeyType = 1
	Density     KeyType = 2
	Orientation KeyType = 3
	Device      KeyType = 4
	Script      KeyType = 5
	ColorMode   KeyType = 6
	MCC         KeyType = 7
	MNC         KeyType = 8
	InputDevice KeyType = 10
)

var keyTypeNames = map[KeyType]string{
	Language:    "language",
	Region:      "region",
	Density:     "density",
	Orientation: "orientation",
	Device:      "device",
	Script:      "script",
	ColorMode:   "colorMode",
	MCC:         "mcc",
	MNC:         "mnc",
	InputDevice: "inputDevice",
}

func (k KeyType) String() string {
	if n, ok := keyTypeNames[k]; ok {
		return n
	}
	return fmt.Sprintf("key(%d)", int32(k))
}

// Named qualifier values. The numeric values are part of the table format.
var (
	orientationValues = map[string]uint32{"vertical": 0, "horizontal": 1}
	deviceValues      = map[string]uint32{"phone": 0, "tablet": 1, "car": 2, "tv": 4, "wearable": 6, "2in1": 7}
	densityValues     = map[string]uint32{"sdpi": 120, "mdpi": 160, "ldpi": 240, "xldpi": 320, "xxldpi": 480, "xxxldpi": 640}
	colorModeValues   = map[string]uint32{"dark": 0, "light": 1}
	inputDeviceValues = map[string]uint32{"pointingdevice": 0}

	namedValues = map[KeyType]map[string]uint32{
		Orientation: orientationValues,
		Device:      deviceValues,
		Density:     densityValues,
		ColorMode:   colorModeValues,
		InputDevice: inputDeviceValues,
	}
	namedKeys = []KeyType{Orientation, Device, ColorMode, Density, InputDevice}
)

// KeyParam is one dimension=value qualifier.
type KeyParam struct {
	Type  KeyType
	Value uint32
}

// LimitKey is the ordered qualifier set of a resource item.
type LimitKey []KeyParam

// BaseLimitKey is the canonical form of an empty qualifier set.
const BaseLimitKey = "base"

// String renders the canonical form used to group items into table sections:
// mcc/mnc and language/script/region runs are joined by '_', groups by '-'.
func (lk LimitKey) String() string {
	if len(lk) == 0 {
		return BaseLimitKey
	}
	var b strings.Builder
	for i, kp := range lk {
		if i > 0 {
			if joinsPrevious(lk[i-1].Type, kp.Type) {
				b.WriteByte('_')
			} else {
				b.WriteByte('-')
			}
		}
		b.WriteString(kp.String())
	}
	return b.String()
}

func joinsPrevious(prev, cur KeyType) bool {
	switch cur {
	case MNC:
		return prev == MCC
	case Script:
		return prev == Language
	case Region:
		return prev == Language || prev == Script
	}
	return false
}

// Equal reports whether two limit keys hold the same params in the same order.
func (lk LimitKey) Equal(other LimitKey) bool {
	if len(lk) != len(other) {
		return false
	}
	for i := range lk {
		if lk[i] != other[i] {
			return false
		}
	}
	return true
}

func (kp KeyParam) String() string {
	switch kp.Type {
	case MCC:
		return fmt.Sprintf("mcc%03d", kp.Value)
	case MNC:
		return fmt.Sprintf("mnc%02d", kp.Value)
	case Language:
		if s, ok := unpackLetters(kp.Value, 2, 3, isLower); ok {
			return s
		}
	case Script:
		if s, ok := unpackLetters(kp.Value, 4, 4, isScriptChar); ok && isUpper(s[0]) {
			return s
		}
	case Region:
		if s, ok := unpackLetters(kp.Value, 2, 2, isUpper); ok {
			return s
		}
		if s, ok := unpackLetters(kp.Value, 3, 3, isDigit); ok {
			return s
		}
	default:
		if values, ok := namedValues[kp.Type]; ok {
			for name, v := range values {
				if v == kp.Value {
					return name
				}
			}
		}
	}
	return fmt.Sprintf("%s#%d", kp.Type, kp.Value)
}

// ParseLimitKey parses a qualifier directory name such as "zh_Hans_CN-dark-xldpi".
func ParseLimitKey(s string) (LimitKey, error) {
	if s == BaseLimitKey {
		return nil, nil
	}
	if s == "" {
		return nil, fmt.Errorf("empty limit key")
	}
	var lk LimitKey
	seen := make(map[KeyType]bool)
	add := func(kp KeyParam) error {
		if seen[kp.Type] {
			return fmt.Errorf("limit key %q repeats %s", s, kp.Type)
		}
		seen[kp.Type] = true
		lk = append(lk, kp)
		return nil
	}
	for _, group := range strings.Split(s, "-") {
		parts := strings.Split(group, "_")
		params, err := parseGroup(parts)
		if err != nil {
			return nil, fmt.Errorf("limit key %q: %w", s, err)
		}
		for _, kp := range params {
			if err := add(kp); err != nil {
				return nil, err
			}
		}
	}
	return lk, nil
}

func parseGroup(parts []string) ([]KeyParam, error) {
	if len(parts) == 1 {
		kp, err := parseSingle(parts[0])
		if err != nil {
			return nil, err
		}
		return []KeyParam{kp}, nil
	}
	if strings.HasPrefix(parts[0], "mcc") {
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid mcc/mnc group %q", strings.Join(parts, "_"))
		}
		mcc, err := parseNumeric(parts[0], "mcc", MCC, 3, 3)
		if err != nil {
			return nil, err
		}
		mnc, err := parseNumeric(parts[1], "mnc", MNC, 2, 3)
		if err != nil {
			return nil, err
		}
		return []KeyParam{mcc, mnc}, nil
	}
	return parseLocale(parts)
}

func parseSingle(part string) (KeyParam, error) {
	for _, kt := range namedKeys {
		if v, ok := namedValues[kt][part]; ok {
			return KeyParam{Type: kt, Value: v}, nil
		}
	}
	if strings.HasPrefix(part, "mcc") {
		return parseNumeric(part, "mcc", MCC, 3, 3)
	}
	if strings.HasPrefix(part, "mnc") {
		return parseNumeric(part, "mnc", MNC, 2, 3)
	}
	if v, ok := packLetters(part, 2, 3, isLower); ok {
		return KeyParam{Type: Language, Value: v}, nil
	}
	return KeyParam{}, fmt.Errorf("unknown qualifier %q", part)
}

func parseLocale(parts []string) ([]KeyParam, error) {
	if len(parts) > 3 {
		return nil, fmt.Errorf("invalid locale %q", strings.Join(parts, "_"))
	}
	lang, ok := packLetters(parts[0], 2, 3, isLower)
	if !ok {
		return nil, fmt.Errorf("invalid language %q", parts[0])
	}
	out := []KeyParam{{Type: Language, Value: lang}}
	rest := parts[1:]
	if len(rest) > 0 {
		if v, ok := packLetters(rest[0], 4, 4, isScriptChar); ok && isUpper(rest[0][0]) {
			out = append(out, KeyParam{Type: Script, Value: v})
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		v, ok := packLetters(rest[0], 2, 2, isUpper)
		if !ok {
			v, ok = packLetters(rest[0], 3, 3, isDigit)
		}
		if !ok {
			return nil, fmt.Errorf("invalid region %q", rest[0])
		}
		out = append(out, KeyParam{Type: Region, Value: v})
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("invalid locale %q", strings.Join(parts, "_"))
	}
	return out, nil
}

func parseNumeric(part, prefix string, kt KeyType, minDigits, maxDigits int) (KeyParam, error) {
	digits := strings.TrimPrefix(part, prefix)
	if len(digits) < minDigits || len(digits) > maxDigits {
		return KeyParam{}, fmt.Errorf("invalid %s %q", kt, part)
	}
	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) {
			return KeyParam{}, fmt.Errorf("invalid %s %q", kt, part)
		}
	}
	v, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return KeyParam{}, fmt.Errorf("invalid %s %q: %w", kt, part, err)
	}
	return KeyParam{Type: kt, Value: uint32(v)}, nil
}

// packLetters packs up to four ASCII bytes big-endian into a uint32.
func packLetters(s string, minLen, maxLen int, ok func(byte) bool) (uint32, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	var v uint32
	for i := 0; i < len(s); i++ {
		if !ok(s[i]) {
			return 0, false
		}
		v = v<<8 | uint32(s[i])
	}
	return v, true
}

func unpackLetters(v uint32, minLen, maxLen int, ok func(byte) bool) (string, bool) {
	var buf [4]byte
	n := 0
	for shift := 24; shift >= 0; shift -= 8 {
		c := byte(v >> uint(shift))
		if c == 0 && n == 0 {
			continue
		}
		buf[n] = c
		n++
	}
	if n < minLen || n > maxLen {
		return "", false
	}
	for i := 0; i < n; i++ {
		if !ok(buf[i]) {
			return "", false
		}
	}
	return string(buf[:n]), true
}

func isLower(c byte) bool      { return c >= 'a' && c <= 'z' }
func isUpper(c byte) bool      { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isScriptChar(c byte) bool { return isLower(c) || isUpper(c) }
