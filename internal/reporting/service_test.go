package reporting

import (
	"bytes"
	"testing"
	"time"

	"crm-platform/internal/communications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() []communications.UnifiedCommunication {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pos := communications.SentimentPositive
	neg := communications.SentimentNegative
	rec := "https://rec.example/1"
	return communications.Aggregate(
		[]communications.CallRecord{
			{ID: "c1", Direction: communications.DirectionInbound, PhoneNumber: "+390212345", Duration: 120, Outcome: communications.CallOutcomeAnswered, RecordingURL: &rec, Sentiment: &pos, CreatedAt: t0},
			{ID: "c2", Direction: communications.DirectionOutbound, PhoneNumber: "+390298765", Duration: 0, Outcome: communications.CallOutcomeNoAnswer, CreatedAt: t0.Add(time.Hour)},
		},
		[]communications.EmailRecord{
			{ID: "e1", Direction: communications.DirectionInbound, Subject: "Mutuo", Sentiment: &neg, CreatedAt: t0.Add(2 * time.Hour)},
		},
		[]communications.ChatRecord{
			{ID: "h1", ContactID: "x", Channel: communications.ChatChannelWhatsApp, Status: communications.ChatStatusActive, ContactName: "Mario Rossi", CreatedAt: t0.Add(3 * time.Hour)},
			{ID: "h2", ContactID: "x", Channel: communications.ChatChannelWebchat, Status: communications.ChatStatusClosed, CreatedAt: t0.Add(-time.Hour)},
		},
	)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Calls)
	assert.Equal(t, 1, s.Emails)
	assert.Equal(t, 2, s.Chats)
	assert.Equal(t, 2, s.Inbound)
	assert.Equal(t, 1, s.Outbound)
	assert.Equal(t, 1, s.CallOutcomes[communications.CallOutcomeAnswered])
	assert.Equal(t, 1, s.CallOutcomes[communications.CallOutcomeNoAnswer])
	assert.Equal(t, 120, s.TotalCallSeconds)
	assert.Equal(t, 60, s.AverageCallSeconds)
	assert.Equal(t, 1, s.RecordedCalls)
	assert.Equal(t, 1, s.Sentiment[communications.SentimentPositive])
	assert.Equal(t, 1, s.Sentiment[communications.SentimentNegative])
	assert.Equal(t, 1, s.OpenChats)

	require.NotNil(t, s.Range)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), s.Range.From)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), s.Range.To)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.AverageCallSeconds)
	assert.Nil(t, s.Range)
}

func TestWriteXLSX(t *testing.T) {
	items := sample()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, items))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, len(items)+1)
	assert.Equal(t, exportHeaders, rows[0])

	// newest first: the active whatsapp chat
	assert.Equal(t, []string{"chat", "h1", "2024-03-01T12:00:00Z", "", "Mario Rossi", "whatsapp", "active"}, rows[1])
	assert.Equal(t, "email", rows[2][0])
	assert.Equal(t, "Mutuo", rows[2][5])
	assert.Equal(t, "no_answer", rows[3][6])
}
