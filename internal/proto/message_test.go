package proto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampAcceptsBackendVariants(t *testing.T) {
	cases := map[string]string{
		"rfc3339":      `"2025-11-03T12:00:00Z"`,
		"fractional":   `"2025-11-03T12:00:00.123456789"`,
		"no zone":      `"2025-11-03T12:00:00"`,
		"epoch millis": `1762171200000`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(raw), &ts))
			require.False(t, ts.IsZero())
			require.Equal(t, 2025, ts.UTC().Year())
		})
	}

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	require.True(t, ts.IsZero())

	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestTimestampMarshalsRFC3339(t *testing.T) {
	ts := Timestamp{Time: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)}
	raw, err := json.Marshal(ts)
	require.NoError(t, err)
	require.Equal(t, `"2025-11-03T12:00:00Z"`, string(raw))

	raw, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	require.Equal(t, `null`, string(raw))
}

func TestSenderRefPrefersNestedObject(t *testing.T) {
	m := Message{Sender: &User{ID: 2, Username: "bob"}, SenderID: 9}
	require.EqualValues(t, 2, m.SenderRef().ID)

	m = Message{SenderID: 9}
	require.EqualValues(t, 9, m.SenderRef().ID)

	m = Message{}
	require.Nil(t, m.SenderRef())
}
