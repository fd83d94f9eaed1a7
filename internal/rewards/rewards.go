// Package rewards reads the action-name to Starbucks table. The file is read
// again on every query so values can be tuned without a restart.
package rewards

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Action names used by the economy
const (
	ActionVoiceChat = "activity_voice_chat"
	ActionTextChat  = "activity_text_chat"
)

// ChannelChatAction is the per-channel override for the text chat reward.
func ChannelChatAction(channelID string) string {
	return ActionTextChat + "_" + channelID
}

// FineAction names the value of a fine of the given severity.
func FineAction(severity string) string {
	return "fine_" + strings.ToLower(severity)
}

// Table is a reward table backed by a YAML (or any viper-supported) file.
type Table struct {
	path string
}

// NewTable creates a table reading from path
func NewTable(path string) *Table {
	return &Table{path: path}
}

// Path returns the backing file path
func (t *Table) Path() string {
	return t.path
}

// Load reads the whole table from disk.
func (t *Table) Load() (Values, error) {
	v := viper.New()
	v.SetConfigFile(t.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read point values: %w", err)
	}

	values := make(Values, len(v.AllKeys()))
	for _, key := range v.AllKeys() {
		amount, err := toInt64(v.Get(key))
		if err != nil {
			return nil, fmt.Errorf("point value %q: %w", key, err)
		}
		values[key] = amount
	}
	return values, nil
}

// Value looks up one action. A missing action is not an error.
func (t *Table) Value(action string) (int64, bool, error) {
	values, err := t.Load()
	if err != nil {
		return 0, false, err
	}
	amount, ok := values.Lookup(action)
	return amount, ok, nil
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not an integer: %v", raw)
	}
}

// Values is one loaded snapshot of the table.
type Values map[string]int64

// Lookup returns the value for action and whether it is configured.
func (v Values) Lookup(action string) (int64, bool) {
	amount, ok := v[strings.ToLower(action)]
	return amount, ok
}

// Get returns the value for action, zero when it is not configured.
func (v Values) Get(action string) int64 {
	amount, _ := v.Lookup(action)
	return amount
}

// VoiceReward is the reward for one interval of voice activity.
func (v Values) VoiceReward() int64 {
	return v.Get(ActionVoiceChat)
}

// ChatReward is the reward for chatting in channelID during one interval.
func (v Values) ChatReward(channelID string) int64 {
	if amount, ok := v.Lookup(ChannelChatAction(channelID)); ok {
		return amount
	}
	return v.Get(ActionTextChat)
}
