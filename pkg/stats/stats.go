// Package stats ведет учет экономии токенов на сессию: для каждого
// запроса сравниваются размеры JSON и компактного табличного
// представления одного и того же результата.
package stats

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// EstimateTokens оценивает число токенов по длине текста.
// Грубая аппроксимация: один токен - примерно четыре символа.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// QueryStats - учет одного запроса
type QueryStats struct {
	JSONChars int       `json:"json_chars"`
	JSONTkns  int       `json:"json_tokens"`
	TOONChars int       `json:"toon_chars"`
	TOONTkns  int       `json:"toon_tokens"`
	QueryType string    `json:"query_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CharsSavedPercent возвращает процент экономии символов
func (q QueryStats) CharsSavedPercent() float64 {
	if q.JSONChars == 0 {
		return 0
	}
	return float64(q.JSONChars-q.TOONChars) / float64(q.JSONChars) * 100
}

// TokensSavedPercent возвращает процент экономии токенов
func (q QueryStats) TokensSavedPercent() float64 {
	if q.JSONTkns == 0 {
		return 0
	}
	return float64(q.JSONTkns-q.TOONTkns) / float64(q.JSONTkns) * 100
}

// LogLine форматирует учет запроса в строку журнала.
//
// Формат:
//
//	[TOON Stats] JSON: 62 chars (15 tokens) | TOON: 21 chars (5 tokens) | Savings: 66.1% chars, 66.7% tokens
func (q QueryStats) LogLine() string {
	return fmt.Sprintf(
		"[TOON Stats] JSON: %d chars (%d tokens) | TOON: %d chars (%d tokens) | Savings: %.1f%% chars, %.1f%% tokens",
		q.JSONChars, q.JSONTkns, q.TOONChars, q.TOONTkns,
		q.CharsSavedPercent(), q.TokensSavedPercent(),
	)
}

// Summary - сводка по сессии
type Summary struct {
	TotalQueries     int            `json:"total_queries"`
	TotalJSONChars   int            `json:"total_json_chars"`
	TotalJSONTokens  int            `json:"total_json_tokens"`
	TotalTOONChars   int            `json:"total_toon_chars"`
	TotalTOONTokens  int            `json:"total_toon_tokens"`
	CharsSaved       int            `json:"chars_saved"`
	TokensSaved      int            `json:"tokens_saved"`
	CharsSavedPct    float64        `json:"chars_saved_percent"`
	TokensSavedPct   float64        `json:"tokens_saved_percent"`
	QueriesByType    map[string]int `json:"queries_by_type"`
}

// SessionStats накапливает учет запросов в течение жизни адаптера.
// Безопасен для конкурентного использования.
type SessionStats struct {
	mu      sync.Mutex
	enabled bool
	queries []QueryStats
	sink    io.Writer
}

// NewSessionStats создает учет сессии.
// sink - необязательный приемник строк журнала (nil отключает журнал):
// строка пишется на каждый учтенный запрос.
func NewSessionStats(enabled bool, sink io.Writer) *SessionStats {
	return &SessionStats{
		enabled: enabled,
		sink:    sink,
	}
}

// Enabled сообщает, включен ли учет
func (s *SessionStats) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled включает или выключает учет
func (s *SessionStats) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Record учитывает один запрос по обоим представлениям результата.
// При выключенном учете - no-op.
func (s *SessionStats) Record(queryType, jsonText, toonText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}

	q := QueryStats{
		JSONChars: len(jsonText),
		JSONTkns:  EstimateTokens(jsonText),
		TOONChars: len(toonText),
		TOONTkns:  EstimateTokens(toonText),
		QueryType: queryType,
		Timestamp: time.Now(),
	}
	s.queries = append(s.queries, q)

	if s.sink != nil {
		fmt.Fprintln(s.sink, q.LogLine())
	}
}

// Queries возвращает копию учтенных запросов
func (s *SessionStats) Queries() []QueryStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]QueryStats, len(s.queries))
	copy(out, s.queries)
	return out
}

// Summary агрегирует учет сессии
func (s *SessionStats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{QueriesByType: make(map[string]int)}
	for _, q := range s.queries {
		sum.TotalQueries++
		sum.TotalJSONChars += q.JSONChars
		sum.TotalJSONTokens += q.JSONTkns
		sum.TotalTOONChars += q.TOONChars
		sum.TotalTOONTokens += q.TOONTkns
		sum.QueriesByType[q.QueryType]++
	}

	sum.CharsSaved = sum.TotalJSONChars - sum.TotalTOONChars
	sum.TokensSaved = sum.TotalJSONTokens - sum.TotalTOONTokens
	if sum.TotalJSONChars > 0 {
		sum.CharsSavedPct = float64(sum.CharsSaved) / float64(sum.TotalJSONChars) * 100
	}
	if sum.TotalJSONTokens > 0 {
		sum.TokensSavedPct = float64(sum.TokensSaved) / float64(sum.TotalJSONTokens) * 100
	}

	return sum
}

// Reset очищает накопленный учет
func (s *SessionStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = nil
}
