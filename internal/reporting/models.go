package reporting

import (
	"time"

	"crm-platform/internal/communications"
)

// TimeRange spans the oldest and newest communication in a summary.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Summary aggregates an inbox sequence for supervisors.
type Summary struct {
	Total  int `json:"total"`
	Calls  int `json:"calls"`
	Emails int `json:"emails"`
	Chats  int `json:"chats"`

	Inbound  int `json:"inbound"`
	Outbound int `json:"outbound"`

	CallOutcomes map[communications.CallOutcome]int `json:"callOutcomes"`

	TotalCallSeconds   int `json:"totalCallSeconds"`
	AverageCallSeconds int `json:"averageCallSeconds"`
	RecordedCalls      int `json:"recordedCalls"`

	// Sentiment counts calls and emails that carry one.
	Sentiment map[communications.Sentiment]int `json:"sentiment"`

	OpenChats int `json:"openChats"` // active or waiting

	Range *TimeRange `json:"range,omitempty"`
}
