package report

import (
	"testing"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/model"
)

func entry(flightID int, code int, rearrange bool) model.ReportEntry {
	return model.ReportEntry{
		Flight:          model.Flight{ID: flightID},
		Weather:         model.Forecast{Condition: model.WeatherCondition{Code: code}},
		ShouldRearrange: rearrange,
	}
}

func TestParse_GroupsByTypeAndDate(t *testing.T) {
	raw := backend.RawReport{
		"arriving": {
			"2026-09-01": {entry(1, 1000, false), entry(2, 1003, false)},
			"2026-09-02": {entry(3, 1006, false)},
		},
		"departing": {
			"2026-09-01": {entry(4, 1000, false)},
		},
	}

	parsed := Parse(raw)

	arriving, ok := parsed["arriving"]
	if !ok {
		t.Fatal("arriving のグループが存在すべき")
	}
	if len(arriving) != 2 {
		t.Fatalf("arriving の日付グループ数 = %d, want 2", len(arriving))
	}
	if len(arriving[0].Flights) != 2 {
		t.Errorf("2026-09-01 の便数 = %d, want 2", len(arriving[0].Flights))
	}
	if len(arriving[0].WeatherReports) != 2 {
		t.Errorf("2026-09-01 の気象数 = %d, want 2", len(arriving[0].WeatherReports))
	}

	departing := parsed["departing"]
	if len(departing) != 1 {
		t.Fatalf("departing の日付グループ数 = %d, want 1", len(departing))
	}
	if departing[0].Flights[0].ID != 4 {
		t.Errorf("departing の便ID = %d, want 4", departing[0].Flights[0].ID)
	}
}

func TestParse_DateGroupsSortedAscending(t *testing.T) {
	raw := backend.RawReport{
		"arriving": {
			"2026-09-03": {entry(3, 1000, false)},
			"2026-09-01": {entry(1, 1000, false)},
			"2026-09-02": {entry(2, 1000, false)},
		},
	}

	for i := 0; i < 5; i++ {
		parsed := Parse(raw)
		groups := parsed["arriving"]
		if len(groups) != 3 {
			t.Fatalf("日付グループ数 = %d, want 3", len(groups))
		}
		if groups[0].Date != "2026-09-01" || groups[1].Date != "2026-09-02" || groups[2].Date != "2026-09-03" {
			t.Errorf("日付グループは昇順であるべき: %s, %s, %s",
				groups[0].Date, groups[1].Date, groups[2].Date)
		}
	}
}

func TestParse_ShouldRearrangeORsEntries(t *testing.T) {
	raw := backend.RawReport{
		"departing": {
			"2026-09-01": {entry(1, 1000, false), entry(2, 1276, true), entry(3, 1000, false)},
			"2026-09-02": {entry(4, 1000, false)},
		},
	}

	parsed := Parse(raw)
	groups := parsed["departing"]

	if !groups[0].ShouldRearrange {
		t.Error("いずれかのエントリにフラグが立っていれば ShouldRearrange は真になるべき")
	}
	if groups[1].ShouldRearrange {
		t.Error("フラグの立ったエントリがない日は ShouldRearrange は偽であるべき")
	}
}

func TestParse_EmptyReport(t *testing.T) {
	parsed := Parse(backend.RawReport{})
	if len(parsed) != 0 {
		t.Errorf("空レポートの Parse = %v, want 空", parsed)
	}
}
