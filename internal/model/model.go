// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleAdmin は管理者。統計ダッシュボードにアクセスできる。
	RoleAdmin Role = "admin"
	// RoleTerminalManager はターミナル管理者。便の変更とゲート登録業務を行う。
	RoleTerminalManager Role = "terminalManager"
	// RolePassenger は搭乗者。チケット購入を行う。
	RolePassenger Role = "passenger"
)

// Claims はベアラトークンから導出されるユーザー情報を表す。
// トークンに埋め込まれており、ネットワークアクセスなしで復元できる。
type Claims struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Roles    RoleSet `json:"roles"`
}

// RoleSet は役割の集合。
// バックエンドのレスポンスには役割が単一値で入る場合と配列で入る場合が
// 混在するため、どちらのJSONエンコーディングも受け付けて集合に正規化する。
type RoleSet map[Role]struct{}

// UnmarshalJSON は文字列・文字列配列の両方のエンコーディングを受け付ける。
func (rs *RoleSet) UnmarshalJSON(data []byte) error {
	set := make(RoleSet)

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			set[Role(single)] = struct{}{}
		}
		*rs = set
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("roles must be a string or an array of strings: %w", err)
	}
	for _, r := range list {
		if r != "" {
			set[Role(r)] = struct{}{}
		}
	}
	*rs = set
	return nil
}

// MarshalJSON は常に配列表現で出力する。
func (rs RoleSet) MarshalJSON() ([]byte, error) {
	list := make([]string, 0, len(rs))
	for _, r := range []Role{RoleAdmin, RoleTerminalManager, RolePassenger} {
		if _, ok := rs[r]; ok {
			list = append(list, string(r))
		}
	}
	// 既知の役割以外も落とさずに含める
	for r := range rs {
		if r != RoleAdmin && r != RoleTerminalManager && r != RolePassenger {
			list = append(list, string(r))
		}
	}
	return json.Marshal(list)
}

// Has は指定された役割を保持しているかを返す。
func (rs RoleSet) Has(r Role) bool {
	_, ok := rs[r]
	return ok
}

// FlightType は便の種別（到着・出発）を表す。
type FlightType string

const (
	FlightTypeArriving  FlightType = "arriving"
	FlightTypeDeparting FlightType = "departing"
)

// FlightStatus は便の運航状態を表す。
type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "scheduled"
	FlightStatusDelayed   FlightStatus = "delayed"
	FlightStatusLanded    FlightStatus = "landed"
	FlightStatusCancelled FlightStatus = "cancelled"
)

// Terminal は空港ターミナルを表す。
type Terminal struct {
	TerminalID   int    `json:"terminalId"`
	TerminalName string `json:"terminalName"`
}

// Gate は搭乗ゲートを表す。
type Gate struct {
	ID         int      `json:"id"`
	GateNumber string   `json:"gateNumber"`
	Terminal   Terminal `json:"terminal"`
}

// Airline は航空会社を表す。
type Airline struct {
	ID          int    `json:"id"`
	AirlineName string `json:"airlineName"`
}

// Airport は相手空港（出発地または到着地）を表す。
type Airport struct {
	AirportName string `json:"airportName"`
	CityName    string `json:"cityName"`
}

// Flight は便を表す。
type Flight struct {
	ID           int          `json:"id"`
	Type         FlightType   `json:"type"`
	ScheduleTime time.Time    `json:"scheduleTime"`
	Status       FlightStatus `json:"status"`
	FlightNumber string       `json:"flightNumber"`
	FlightName   string       `json:"flightName"`
	Gate         Gate         `json:"gate"`
	Airline      Airline      `json:"airline"`
	Airport      Airport      `json:"airport"`
}

// SeatClass は座席クラスを表す。
type SeatClass string

const (
	SeatClassBusiness SeatClass = "business"
	SeatClassEconomy  SeatClass = "economy"
)

// FlightPrice は便の座席クラスごとの価格を表す。
type FlightPrice struct {
	SeatClass SeatClass `json:"seatClass"`
	Price     float64   `json:"price"`
}

// FlightDetail は便の詳細（チケット・価格を含む）を表す。
type FlightDetail struct {
	Flight
	Tickets      []Ticket      `json:"tickets"`
	FlightPrices []FlightPrice `json:"flightPrices"`
}

// Passenger は搭乗者を表す。
type Passenger struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Ticket は購入済みチケットを表す。
type Ticket struct {
	ID        int        `json:"id"`
	SeatClass SeatClass  `json:"seatClass"`
	FlightID  int        `json:"flightId"`
	Price     float64    `json:"price"`
	Passenger *Passenger `json:"passenger,omitempty"`
}

// LuggageStatus は手荷物の処理状態を表す。
type LuggageStatus string

const (
	LuggageStatusPending LuggageStatus = "pending"
	LuggageStatusLoaded  LuggageStatus = "loaded"
	LuggageStatusLost    LuggageStatus = "lost"
)

// Luggage はゲートで登録された手荷物を表す。
// 重量はバックエンドが文字列で返すためstringのまま保持する。
type Luggage struct {
	ID     int           `json:"id"`
	Weight string        `json:"weight"`
	Status LuggageStatus `json:"status"`
}

// RegisteredTicket はゲートでの搭乗登録を表す。
type RegisteredTicket struct {
	ID      int      `json:"id"`
	Ticket  Ticket   `json:"ticket"`
	Luggage *Luggage `json:"luggage,omitempty"`
}

// FlightFilter は便一覧のフィルタ条件を表す。
// ゼロ値のフィールドはクエリに含めない。
type FlightFilter struct {
	Type             FlightType
	Status           FlightStatus
	SearchName       string
	ScheduleTimeFrom time.Time
	ScheduleTimeTo   time.Time
	GateID           int
}

// SeatAvailability は便の座席空き状況を表す。
type SeatAvailability struct {
	TicketCount int `json:"ticket_count"`
	Seats       int `json:"seats"`
}

// TicketOrder はチケット購入リクエストの1件分を表す。
type TicketOrder struct {
	FlightID  int       `json:"flightId"`
	SeatClass SeatClass `json:"seatClass"`
	Price     float64   `json:"price"`
}

// WeatherCondition は気象状態を表す。
type WeatherCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

// Forecast は時間帯ごとの気象予報を表す。
type Forecast struct {
	TimeEpoch int64            `json:"time_epoch"`
	Time      string           `json:"time"`
	TempC     float64          `json:"temp_c"`
	TempF     float64          `json:"temp_f"`
	IsDay     int              `json:"is_day"`
	Condition WeatherCondition `json:"condition"`
}

// ReportEntry はゲートレポートの1エントリ（便と気象の組）を表す。
type ReportEntry struct {
	Flight          Flight   `json:"flight"`
	Weather         Forecast `json:"weather"`
	ShouldRearrange bool     `json:"shouldRearrange"`
}

// RearrangeSuggestion はゲート再配置の提案時刻を表す。
type RearrangeSuggestion struct {
	FlightID      int       `json:"flightId"`
	SuggestedTime time.Time `json:"suggestedTime"`
}
