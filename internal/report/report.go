// Package report はゲートレポートの整形を提供する。
// バックエンドは「便種別 → 日付 → (便, 気象, 再配置フラグ) の列」という
// 入れ子構造で返すため、ビューが扱いやすい形にまとめ直す。
package report

import (
	"sort"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/model"
)

// DateGroup は1日分のレポートグループ。
type DateGroup struct {
	Date            string           `json:"date"`
	Flights         []model.Flight   `json:"flights"`
	WeatherReports  []model.Forecast `json:"weatherReports"`
	ShouldRearrange bool             `json:"shouldRearrange"`
}

// Parsed は整形済みレポート。便種別ごとに日付グループを日付昇順で持つ。
type Parsed map[string][]DateGroup

// Parse は生のレポートを整形する。
// 日付グループのShouldRearrangeは、その日のいずれかのエントリに
// 再配置フラグが立っていれば真になる。
func Parse(raw backend.RawReport) Parsed {
	result := make(Parsed, len(raw))

	for flightType, dateGroups := range raw {
		groups := make([]DateGroup, 0, len(dateGroups))

		for date, entries := range dateGroups {
			group := DateGroup{
				Date:           date,
				Flights:        make([]model.Flight, 0, len(entries)),
				WeatherReports: make([]model.Forecast, 0, len(entries)),
			}
			for _, entry := range entries {
				group.Flights = append(group.Flights, entry.Flight)
				group.WeatherReports = append(group.WeatherReports, entry.Weather)
				if entry.ShouldRearrange {
					group.ShouldRearrange = true
				}
			}
			groups = append(groups, group)
		}

		// マップの列挙順は不定なので日付で安定化する
		sort.Slice(groups, func(i, j int) bool {
			return groups[i].Date < groups[j].Date
		})

		result[flightType] = groups
	}

	return result
}
