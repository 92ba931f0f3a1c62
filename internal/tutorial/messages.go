package tutorial

import (
	"fmt"
	"strings"
)

// seedSystemPrompt opens every session's history. The narration
// service uses its own analyst prompt; this one frames the stored
// conversation.
const seedSystemPrompt = "You help users understand power outage and community data. Be friendly and clear."

func introMessage() string {
	return "In a sea of data it's hard to see insights. I'll guide you through! Try typing a zip code: add 12345 to start."
}

func collectingMessage(zips []string) string {
	if len(zips) >= 5 {
		return fmt.Sprintf("5 ZIPs is a good amount: %s. Let's try the next step: type compare.", strings.Join(zips, ", "))
	}
	joined := strings.Join(zips, ", ")
	if joined == "" {
		joined = "(none)"
	}
	return fmt.Sprintf("You've added: %s. Add more ZIPs with add 12345, or type compare when ready.", joined)
}

func closingMessage() string {
	return "Thanks for exploring the outage data with me!"
}

// Seed, empty-result, and failure text per data-bearing stage. The
// seed only reaches the user when the narration service is skipped;
// with metrics present the model's analysis replaces it.
const (
	comparisonSeed  = "Here's how these ZIPs compare over time! Notice differences in trends? Type anything to explore economic correlations."
	comparisonEmpty = "No data found for the selected ZIP codes."
	comparisonFail  = "Failed to retrieve comparison data."

	correlationsSeed  = "Here are the socioeconomic factors for each ZIP, split into two charts for clarity. Type anything to see weather impacts."
	correlationsEmpty = "No socioeconomic data found for the selected ZIP codes."
	correlationsFail  = "Failed to retrieve socioeconomic data."

	weatherSeed  = "Here's how weather impacts outages for each ZIP. One more step: type anything to see the most affected areas."
	weatherEmpty = "No weather data found for the selected ZIP codes."
	weatherFail  = "Failed to retrieve weather data."

	topAffectedSeed  = "Here are the areas most affected by outages."
	topAffectedEmpty = "No affected areas found for the selected ZIP codes."
	topAffectedFail  = "Failed to retrieve top affected areas."
)
