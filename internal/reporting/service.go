package reporting

import (
	"crm-platform/internal/communications"
)

// Summarize computes channel, direction, outcome and sentiment totals over items.
func Summarize(items []communications.UnifiedCommunication) Summary {
	out := Summary{
		CallOutcomes: map[communications.CallOutcome]int{},
		Sentiment:    map[communications.Sentiment]int{},
	}
	for _, it := range items {
		out.Total++
		if out.Range == nil {
			out.Range = &TimeRange{From: it.Timestamp, To: it.Timestamp}
		}
		if it.Timestamp.Before(out.Range.From) {
			out.Range.From = it.Timestamp
		}
		if it.Timestamp.After(out.Range.To) {
			out.Range.To = it.Timestamp
		}

		if it.Direction != nil {
			switch *it.Direction {
			case communications.DirectionInbound:
				out.Inbound++
			case communications.DirectionOutbound:
				out.Outbound++
			}
		}

		switch r := it.Detail.(type) {
		case communications.CallRecord:
			out.Calls++
			out.CallOutcomes[r.Outcome]++
			out.TotalCallSeconds += r.Duration
			if r.RecordingURL != nil && *r.RecordingURL != "" {
				out.RecordedCalls++
			}
			if r.Sentiment != nil {
				out.Sentiment[*r.Sentiment]++
			}
		case communications.EmailRecord:
			out.Emails++
			if r.Sentiment != nil {
				out.Sentiment[*r.Sentiment]++
			}
		case communications.ChatRecord:
			out.Chats++
			if r.Status != communications.ChatStatusClosed {
				out.OpenChats++
			}
		}
	}
	if out.Calls > 0 {
		out.AverageCallSeconds = out.TotalCallSeconds / out.Calls
	}
	return out
}
