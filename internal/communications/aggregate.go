package communications

import "sort"

// Aggregate merges the three collections into one sequence, most recent first.
//
// Items are concatenated calls, emails, chats and then stably sorted by
// timestamp, so equal timestamps keep that order (and fetch order within a
// source). Inputs are not modified.
func Aggregate(calls []CallRecord, emails []EmailRecord, chats []ChatRecord) []UnifiedCommunication {
	out := make([]UnifiedCommunication, 0, len(calls)+len(emails)+len(chats))
	for _, c := range calls {
		out = append(out, NormalizeCall(c))
	}
	for _, e := range emails {
		out = append(out, NormalizeEmail(e))
	}
	for _, c := range chats {
		out = append(out, NormalizeChat(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Page returns the [offset, offset+limit) window of seq. limit <= 0 means no limit.
func Page(seq []UnifiedCommunication, offset, limit int) []UnifiedCommunication {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(seq) {
		return []UnifiedCommunication{}
	}
	end := len(seq)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return seq[offset:end]
}
