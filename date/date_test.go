package date

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	if New(2025, 9, 31) != New(2025, 10, 1) {
		t.Errorf("New(2025, 9, 31) is not normalized")
	}
	if !(Date{}).IsZero() || New(2025, 1, 1).IsZero() {
		t.Errorf("IsZero() mismatch")
	}
	if got := New(2025, time.February, 3).String(); got != "2025-02-03" {
		t.Errorf("String() = %q", got)
	}
}

func TestParse(t *testing.T) {
	if got := MustParse("2025-7-1"); got != New(2025, 7, 1) {
		t.Errorf("MustParse(2025-7-1) = %v", got)
	}
	if _, err := Parse("01/07/2025"); err == nil {
		t.Errorf("Parse(01/07/2025) want error")
	}
}

func TestMarshalJSON(t *testing.T) {
	got, err := New(2025, 9, 29).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `"2025-09-29"` {
		t.Errorf("MarshalJSON() = %s", got)
	}
}

func TestCompare(t *testing.T) {
	a, b := MustParse("2025-09-29"), MustParse("2025-09-30")
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Errorf("Compare() mismatch")
	}
}

func TestDaysTo(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2025-09-29", "2025-09-30", 1},
		{"2025-09-30", "2025-09-29", -1},
		{"2025-02-27", "2025-03-03", 4},
		{"2024-03-30", "2024-03-31", 1},
		{"2025-01-01", "2025-01-01", 0},
	}
	for _, tt := range tests {
		if got := MustParse(tt.from).DaysTo(MustParse(tt.to)); got != tt.want {
			t.Errorf("%s.DaysTo(%s) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}
