package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "63.33", FormatMoney(decimal.RequireFromString("63.327")))
	assert.Equal(t, "1090.00", FormatMoney(decimal.NewFromInt(1090)))
	assert.Equal(t, "+90.00", FormatSigned(decimal.NewFromInt(90)))
	assert.Equal(t, "-50.00", FormatSigned(decimal.NewFromInt(-50)))
	assert.Equal(t, "+0.00", FormatSigned(decimal.Zero))
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "0s", FormatRemaining(-time.Second))
	assert.Equal(t, "1s", FormatRemaining(200*time.Millisecond))
	assert.Equal(t, "60s", FormatRemaining(time.Minute))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "5f2b7c1e", ShortID("5f2b7c1e-aaaa-bbbb-cccc-ddddeeeeffff"))
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "abcde...", ShortID("abcdefghijkl"))
}

func TestTruncateStr(t *testing.T) {
	assert.Equal(t, "hello", TruncateStr("hello", 10))
	assert.Equal(t, "hel...", TruncateStr("hello world", 6))
}
