package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-03-01", "2025-03-01"},
		{" 2025-12-31 ", "2025-12-31"},
		{"2025-03-01T00:00:00.000Z", "2025-03-01"},
		{"2025-03-01T23:30:00-05:00", "2025-03-01"},
		{"2025-03-02T01:00:00+09:00", "2025-03-02"},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "tomorrow", "2025-13-01", "01/03/2025"} {
		if _, err := ParseDate(in); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q) expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestDateTimeIsUTCMidnight(t *testing.T) {
	d := Date{Year: 2024, Month: time.February, Day: 29}
	got := d.Time()
	if got.Location() != time.UTC || got.Hour() != 0 || got.Day() != 29 {
		t.Fatalf("unexpected time: %s", got)
	}
	if DateOf(got) != d {
		t.Fatalf("round trip through time changed the date")
	}
}

func TestDateJSON(t *testing.T) {
	payload := struct {
		Due  *Date `json:"due"`
		None *Date `json:"none"`
	}{Due: &Date{Year: 2025, Month: time.July, Day: 4}}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"due":"2025-07-04","none":null}` {
		t.Fatalf("unexpected json: %s", data)
	}
}
