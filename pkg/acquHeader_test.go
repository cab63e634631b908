package decoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		wall    time.Time
		run     uint32
		want    time.Time
		wantErr bool
	}{
		{
			name: "summer time",
			wall: time.Date(2014, time.April, 10, 12, 0, 0, 0, time.UTC),
			run:  1234,
			want: time.Date(2014, time.April, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "winter time",
			wall: time.Date(2015, time.January, 5, 8, 15, 30, 0, time.UTC),
			run:  7000,
			want: time.Date(2015, time.January, 5, 7, 15, 30, 0, time.UTC),
		},
		{
			name: "ambiguous hour, known DST run",
			wall: time.Date(2014, time.October, 26, 2, 30, 0, 0, time.UTC),
			run:  6592,
			want: time.Date(2014, time.October, 26, 0, 30, 0, 0, time.UTC),
		},
		{
			name: "ambiguous hour, known standard time run",
			wall: time.Date(2014, time.October, 26, 2, 30, 0, 0, time.UTC),
			run:  6594,
			want: time.Date(2014, time.October, 26, 1, 30, 0, 0, time.UTC),
		},
		{
			name:    "ambiguous hour, unknown run",
			wall:    time.Date(2014, time.October, 26, 2, 30, 0, 0, time.UTC),
			run:     6595,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RunTimestamp(HeaderInfo{Time: tt.wall, RunNumber: tt.run})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Unix(), got)
		})
	}
}

func TestSanitizeString(t *testing.T) {
	raw := make([]byte, 32)
	copy(raw, " Thu Apr 10 12:00:00 2014\n")
	assert.Equal(t, "Thu Apr 10 12:00:00 2014", sanitizeString(raw))
	assert.Equal(t, "abc", sanitizeString([]byte("abc")))
}

func TestInspectHeader(t *testing.T) {
	assert.True(t, inspectHeader([]uint32{EHeadBuff, EHeadBuff, 0}))
	assert.False(t, inspectHeader([]uint32{EHeadBuff}))
	assert.False(t, inspectHeader([]uint32{EHeadBuff, EMk2DataBuff}))
}

func TestMessageFormatted(t *testing.T) {
	m := Message{Level: DataDiscard, Text: "Discarded buffer number {} with {} events", Payload: []float64{12, 3}}
	assert.Equal(t, "Discarded buffer number 12 with 3 events", m.Formatted())
	assert.Equal(t, "[DataDiscard] Discarded buffer number 12 with 3 events", m.String())

	short := Message{Level: Info, Text: "a {} b {}", Payload: []float64{1}}
	assert.Equal(t, "a 1 b {}", short.Formatted())
}
