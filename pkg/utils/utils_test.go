package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-5, "now"},
		{0, "now"},
		{59, "59s"},
		{60, "1m"},
		{3723, "1h, 2m, 3s"},
		{7200, "2h"},
		{86399, "23h, 59m, 59s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "seconds=%d", tt.in)
	}
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<@123>", FormatUserMention("123"))
	assert.Equal(t, "123", ExtractUserIDFromMention("<@123>"))
	assert.Equal(t, "123", ExtractUserIDFromMention("<@!123>"))
	assert.Equal(t, "123", ExtractUserIDFromMention("123"))

	assert.True(t, IsUserMention("<@!123>"))
	assert.False(t, IsUserMention("<@&456>"))
	assert.False(t, IsUserMention("123"))
}

func TestFormatStarbucks(t *testing.T) {
	assert.Equal(t, "1 Starbuck", FormatStarbucks(1))
	assert.Equal(t, "0 Starbucks", FormatStarbucks(0))
	assert.Equal(t, "-30 Starbucks", FormatStarbucks(-30))
}
