package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var errEmpty = errors.New("empty value")

var currencyPrefix = regexp.MustCompile(`^[^\d\-.]+`)

// StripCurrency removes any currency code or symbol in front of an amount,
// "AED 45" becomes "45".
func StripCurrency(raw string) (any, error) {
	cleaned := strings.TrimSpace(currencyPrefix.ReplaceAllString(strings.TrimSpace(raw), ""))
	if cleaned == "" {
		return nil, errEmpty
	}
	return cleaned, nil
}

// ParseInt parses an integer, ignoring thousands separators.
func ParseInt(raw string) (any, error) {
	return strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
}

func ParseNumber(raw string) (any, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
}

func FirstWord(raw string) (any, error) {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return nil, errEmpty
	}
	return words[0], nil
}

// CleanImageURL drops everything after the ".jpg" of an image URL, which
// removes resizing parameters appended by image CDNs.
func CleanImageURL(raw string) (any, error) {
	idx := strings.Index(raw, ".jpg")
	if idx < 0 {
		return raw, nil
	}
	return raw[:idx+len(".jpg")], nil
}

// TrimURL drops the query and fragment of a URL.
func TrimURL(raw string) (any, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Timestamp parses a date in any common layout and renders it as RFC3339 in UTC.
func Timestamp(raw string) (any, error) {
	t, err := dateparse.ParseAny(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return t.UTC().Format(time.RFC3339), nil
}

func Lower(raw string) (any, error) {
	return strings.ToLower(raw), nil
}

// Transforms are the transforms that can be referenced by name in target files.
var Transforms = map[string]Transform{
	"price":      StripCurrency,
	"int":        ParseInt,
	"number":     ParseNumber,
	"first_word": FirstWord,
	"jpg_url":    CleanImageURL,
	"trim_url":   TrimURL,
	"timestamp":  Timestamp,
	"lower":      Lower,
}

// Chain feeds the output of each transform into the next one.
func Chain(transforms ...Transform) Transform {
	return func(raw string) (any, error) {
		var value any = raw
		for _, t := range transforms {
			var err error
			value, err = t(fmt.Sprint(value))
			if err != nil {
				return nil, err
			}
		}
		return value, nil
	}
}

// LookupTransform resolves a transform spec such as "first_word|int".
func LookupTransform(spec string) (Transform, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	var chain []Transform
	for _, name := range strings.Split(spec, "|") {
		name = strings.TrimSpace(name)
		t, ok := Transforms[name]
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", name)
		}
		chain = append(chain, t)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return Chain(chain...), nil
}
