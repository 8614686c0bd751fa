package communications

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ids(seq []UnifiedCommunication) []string {
	out := make([]string, 0, len(seq))
	for _, it := range seq {
		out = append(out, it.ID)
	}
	return out
}

func TestAggregate_LaterEmailFirst(t *testing.T) {
	calls := []CallRecord{{ID: "c1", Direction: DirectionInbound, CreatedAt: at("2024-01-02T10:00:00Z")}}
	emails := []EmailRecord{{ID: "e1", Direction: DirectionOutbound, CreatedAt: at("2024-01-02T12:00:00Z")}}

	got := Aggregate(calls, emails, nil)
	assert.Equal(t, []string{"e1", "c1"}, ids(got))
	assert.Equal(t, KindEmail, got[0].Type)
	assert.Equal(t, KindCall, got[1].Type)
}

func TestAggregate_TieBreakCallsEmailsChats(t *testing.T) {
	ts := at("2024-03-01T09:00:00Z")
	calls := []CallRecord{{ID: "c1", CreatedAt: ts}, {ID: "c2", CreatedAt: ts}}
	emails := []EmailRecord{{ID: "e1", CreatedAt: ts}}
	chats := []ChatRecord{{ID: "h1", CreatedAt: ts}, {ID: "h0", CreatedAt: at("2024-03-01T10:00:00Z")}}

	got := Aggregate(calls, emails, chats)
	assert.Equal(t, []string{"h0", "c1", "c2", "e1", "h1"}, ids(got))
}

func TestAggregate_LengthOrderAndInputsUntouched(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	base := at("2024-01-01T00:00:00Z")
	var calls []CallRecord
	var emails []EmailRecord
	var chats []ChatRecord
	for i := 0; i < 40; i++ {
		ts := base.Add(time.Duration(r.Intn(10)) * time.Hour)
		switch i % 3 {
		case 0:
			calls = append(calls, CallRecord{ID: "c" + string(rune('a'+i)), CreatedAt: ts})
		case 1:
			emails = append(emails, EmailRecord{ID: "e" + string(rune('a'+i)), CreatedAt: ts})
		default:
			chats = append(chats, ChatRecord{ID: "h" + string(rune('a'+i)), CreatedAt: ts})
		}
	}
	firstCall := calls[0]

	got := Aggregate(calls, emails, chats)
	require.Len(t, got, len(calls)+len(emails)+len(chats))
	rank := map[Kind]int{KindCall: 0, KindEmail: 1, KindChat: 2}
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		require.False(t, cur.Timestamp.After(prev.Timestamp), "not sorted at %d", i)
		if cur.Timestamp.Equal(prev.Timestamp) {
			require.LessOrEqual(t, rank[prev.Type], rank[cur.Type], "tie-break broken at %d", i)
		}
	}
	assert.Equal(t, firstCall, calls[0])
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterByType_MatchesSingleSourceAggregate(t *testing.T) {
	ts := at("2024-01-05T08:00:00Z")
	calls := []CallRecord{{ID: "c1", CreatedAt: ts}, {ID: "c2", CreatedAt: ts.Add(time.Hour)}, {ID: "c3", CreatedAt: ts}}
	emails := []EmailRecord{{ID: "e1", CreatedAt: ts.Add(30 * time.Minute)}}
	chats := []ChatRecord{{ID: "h1", CreatedAt: ts.Add(2 * time.Hour)}}

	all := Aggregate(calls, emails, chats)
	snapshot := append([]UnifiedCommunication(nil), all...)

	assert.Equal(t, ids(Aggregate(calls, nil, nil)), ids(FilterByType(all, FilterCall)))
	assert.Equal(t, ids(Aggregate(nil, emails, nil)), ids(FilterByType(all, FilterEmail)))
	assert.Equal(t, ids(Aggregate(nil, nil, chats)), ids(FilterByType(all, FilterChat)))
	assert.Equal(t, ids(all), ids(FilterByType(all, FilterAll)))
	assert.Equal(t, snapshot, all)
}

func TestSelectByID(t *testing.T) {
	seq := Aggregate(
		[]CallRecord{{ID: "dup", CreatedAt: at("2024-01-02T10:00:00Z")}},
		[]EmailRecord{{ID: "dup", CreatedAt: at("2024-01-01T10:00:00Z")}},
		nil,
	)
	it, ok := SelectByID(seq, ptr("dup"))
	require.True(t, ok)
	assert.Equal(t, KindCall, it.Type)

	_, ok = SelectByID(seq, nil)
	assert.False(t, ok)
	_, ok = SelectByID(seq, ptr("missing"))
	assert.False(t, ok)
}

func TestSelection_SurvivesFilterChange(t *testing.T) {
	all := Aggregate(
		[]CallRecord{{ID: "c1", CreatedAt: at("2024-01-02T10:00:00Z")}},
		[]EmailRecord{{ID: "e1", CreatedAt: at("2024-01-02T12:00:00Z")}},
		nil,
	)
	var sel Selection
	assert.False(t, sel.IsSelected())
	sel = sel.Select("e1")

	visible := FilterByType(all, FilterCall)
	_, inVisible := SelectByID(visible, sel.ID())
	assert.False(t, inVisible)

	it, ok := sel.Resolve(all)
	require.True(t, ok)
	assert.Equal(t, "e1", it.ID)

	sel = sel.Deselect()
	assert.Nil(t, sel.ID())
}

func TestParseTypeFilter(t *testing.T) {
	f, err := ParseTypeFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	_, err = ParseTypeFilter("sms")
	assert.Error(t, err)
}

func TestPage(t *testing.T) {
	seq := Aggregate([]CallRecord{
		{ID: "a", CreatedAt: at("2024-01-03T00:00:00Z")},
		{ID: "b", CreatedAt: at("2024-01-02T00:00:00Z")},
		{ID: "c", CreatedAt: at("2024-01-01T00:00:00Z")},
	}, nil, nil)
	assert.Equal(t, []string{"b"}, ids(Page(seq, 1, 1)))
	assert.Equal(t, []string{"b", "c"}, ids(Page(seq, 1, 0)))
	assert.Empty(t, Page(seq, 5, 10))
}

func TestNormalize(t *testing.T) {
	c := NormalizeChat(ChatRecord{ID: "h1", ContactName: "Mario Rossi", CreatedAt: at("2024-01-01T00:00:00Z")})
	assert.Nil(t, c.Direction)
	assert.Equal(t, "Mario Rossi", c.ContactName)
	chat, ok := c.Chat()
	require.True(t, ok)
	assert.Equal(t, "h1", chat.ID)
	_, ok = c.Call()
	assert.False(t, ok)

	call := Normalize(CallRecord{ID: "c1", Direction: DirectionInbound, CreatedAt: at("2024-01-01T00:00:00Z")})
	require.NotNil(t, call.Direction)
	assert.Equal(t, DirectionInbound, *call.Direction)
	assert.Equal(t, call.Timestamp, call.Detail.Created())
}

func TestUnifiedCommunication_JSONRoundTrip(t *testing.T) {
	orig := NormalizeEmail(EmailRecord{
		ID:        "e1",
		Direction: DirectionInbound,
		From:      "a@example.com",
		To:        "b@example.com",
		Subject:   "s",
		Body:      "b",
		CreatedAt: at("2024-01-02T12:00:00Z"),
	})
	b, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"email"`)

	var back UnifiedCommunication
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, orig.ID, back.ID)
	email, ok := back.Email()
	require.True(t, ok)
	assert.Equal(t, "a@example.com", email.From)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"fax","detail":{}}`), &back))
}
