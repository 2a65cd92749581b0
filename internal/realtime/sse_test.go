package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/testutil"
)

func TestFormatSSEMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "snapshot",
			data:      `{"phase":"Lobby"}`,
			expected:  "event: snapshot\ndata: {\"phase\":\"Lobby\"}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "snapshot",
			data:      "{\n  \"phase\": \"Flop\"\n}",
			expected:  "event: snapshot\ndata: {\ndata:   \"phase\": \"Flop\"\ndata: }\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "data with carriage returns",
			eventName: "test",
			data:      "line1\r\nline2",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatSSEMessage(tt.eventName, tt.data)
			if string(result) != tt.expected {
				t.Errorf("formatSSEMessage(%q, %q)\ngot:  %q\nwant: %q",
					tt.eventName, tt.data, string(result), tt.expected)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single line", input: "hello", expected: []string{"hello"}},
		{name: "two lines", input: "line1\nline2", expected: []string{"line1", "line2"}},
		{name: "trailing newline", input: "line1\n", expected: []string{"line1"}},
		{name: "empty string", input: "", expected: []string{""}},
		{name: "blank middle line", input: "a\n\nb", expected: []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, splitLines(tt.input))
		})
	}
}

// readSnapshot reads events until the next snapshot and decodes it
func readSnapshot(t *testing.T, r *bufio.Reader) model.SessionView {
	t.Helper()
	event := ""
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == SnapshotEvent:
			var view model.SessionView
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &view))
			return view
		}
	}
}

func TestSSEStreamsSnapshotsAndDetaches(t *testing.T) {
	sess := newTestSession(t)
	streamer := NewSSEStreamer(testConfig(), testRandom(), testutil.NopLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamer.Serve(w, r, sess, alice)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	primed := readSnapshot(t, reader)
	require.Equal(t, []string{"Alice"}, primed.MemberNames)

	sess.AddMember(ctx, bob)
	next := readSnapshot(t, reader)
	require.Equal(t, []string{"Alice", "Bob"}, next.MemberNames)

	cancel()
	require.Eventually(t, func() bool {
		return sess.ConnectionCount(alice) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSSERejectsNonMember(t *testing.T) {
	sess := newTestSession(t)
	streamer := NewSSEStreamer(testConfig(), testRandom(), testutil.NopLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamer.Serve(w, r, sess, bob)
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, 0, sess.ConnectionCount(bob))
}

func TestOutboxSendAfterCloseFails(t *testing.T) {
	out := newOutbox("o1", 1)
	out.close()

	err := out.Send(context.Background(), model.SessionView{})
	require.ErrorIs(t, err, ErrClosed)
}

func TestOutboxSendFailsFastWhenFull(t *testing.T) {
	out := newOutbox("o1", 1)
	require.NoError(t, out.Send(context.Background(), model.SessionView{}))

	start := time.Now()
	err := out.Send(context.Background(), model.SessionView{})
	require.ErrorIs(t, err, ErrBacklogged)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
