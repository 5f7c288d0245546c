package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidParam = errors.New("invalid_param")

// parseOptional returns nil for blank input and errInvalidParam when parse fails.
func parseOptional[T any](value string, parse func(string) (T, error)) (*T, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := parse(trimmed)
	if err != nil {
		return nil, errInvalidParam
	}
	return &parsed, nil
}

func parseOptionalBool(value string) (*bool, error) {
	return parseOptional(value, strconv.ParseBool)
}

func parseOptionalInt64(value string) (*int64, error) {
	return parseOptional(value, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func parseOptionalDecimal(value string) (*decimal.Decimal, error) {
	return parseOptional(value, decimal.NewFromString)
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	return parseOptional(value, func(s string) (snowflake.ID, error) {
		id, err := snowflake.ParseString(s)
		if err != nil || id <= 0 {
			return 0, errInvalidParam
		}
		return id, nil
	})
}

// parseOptionalTime accepts RFC 3339 or a bare UTC date. A bare date maps to
// the start of the day, or its last nanosecond when endOfDay is set.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	return parseOptional(value, func(s string) (time.Time, error) {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return parsed, nil
		}
		day, err := time.Parse(dateOnlyLayout, s)
		if err != nil {
			return time.Time{}, err
		}
		if endOfDay {
			return day.Add(24*time.Hour - time.Nanosecond), nil
		}
		return day, nil
	})
}
