package utils

import (
	"fmt"
	"strings"
)

// FormatUserMention formats a user ID as a Discord mention
func FormatUserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// ExtractUserIDFromMention extracts the user ID from a Discord mention.
// Plain numeric IDs are returned as they are.
func ExtractUserIDFromMention(mention string) string {
	userID := strings.TrimPrefix(mention, "<@")
	userID = strings.TrimSuffix(userID, ">")
	// nickname mentions
	userID = strings.TrimPrefix(userID, "!")
	return userID
}

// IsUserMention checks if a string is a user mention
func IsUserMention(text string) bool {
	return strings.HasPrefix(text, "<@") && strings.HasSuffix(text, ">") && !strings.HasPrefix(text, "<@&")
}

// FormatStarbucks formats an amount of Starbucks with its unit
func FormatStarbucks(amount int64) string {
	if amount == 1 || amount == -1 {
		return fmt.Sprintf("%d Starbuck", amount)
	}
	return fmt.Sprintf("%d Starbucks", amount)
}
