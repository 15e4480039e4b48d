package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTable_ParseEarnings(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name     string
		text     string
		amount   string
		triggers []string
	}{
		{
			name:     "no plus means not a notification",
			text:     "Ленина 5 мк синяя",
			amount:   "0",
			triggers: nil,
		},
		{
			name:     "single base",
			text:     "Ленина 5 +",
			amount:   "10",
			triggers: []string{"+"},
		},
		{
			name:     "double base never reports single",
			text:     "Ленина 5 ++",
			amount:   "20",
			triggers: []string{"++"},
		},
		{
			name:     "mk modifier",
			text:     "Ленина 5 + мк",
			amount:   "15",
			triggers: []string{"+", "мк"},
		},
		{
			name:     "mk must be word bounded",
			text:     "Ленина 5 + замкнутая",
			amount:   "10",
			triggers: []string{"+"},
		},
		{
			name:     "color in address prefix does not count",
			text:     "улица синяя 5 + мк",
			amount:   "15",
			triggers: []string{"+", "мк"},
		},
		{
			name:     "colors are additive in table order",
			text:     "Ленина 5 + красная синяя",
			amount:   "34",
			triggers: []string{"+", "синяя", "красная"},
		},
		{
			name:     "quantity gab with space",
			text:     "Ленина 5 + 3 габ",
			amount:   "31",
			triggers: []string{"+", "3габ"},
		},
		{
			name:     "quantity gab with star",
			text:     "Ленина 5 + 3*габ",
			amount:   "31",
			triggers: []string{"+", "3габ"},
		},
		{
			name:     "quantity gab glued",
			text:     "Ленина 5 + 3габ",
			amount:   "31",
			triggers: []string{"+", "3габ"},
		},
		{
			name:     "bare gab adds exactly one unit",
			text:     "Ленина 5 + габ",
			amount:   "17",
			triggers: []string{"+", "габ"},
		},
		{
			name:     "quantity match suppresses bare word",
			text:     "Ленина 5 + 2габ",
			amount:   "24",
			triggers: []string{"+", "2габ"},
		},
		{
			name:     "two quantity matches both add",
			text:     "Ленина 5 + 2габ и 3 габ",
			amount:   "45",
			triggers: []string{"+", "2габ", "3габ"},
		},
		{
			name:     "upper case is folded",
			text:     "Ленина 5 ++МК Синяя",
			amount:   "33",
			triggers: []string{"++", "мк", "синяя"},
		},
		{
			name:     "everything at once",
			text:     "Ленина 5 ++ мк голубая 2габ",
			amount:   "115",
			triggers: []string{"++", "мк", "голубая", "2габ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, triggers := table.ParseEarnings(tt.text)
			assert.True(t, amount.Equal(decimal.RequireFromString(tt.amount)),
				"amount = %s, want %s", amount, tt.amount)
			assert.Equal(t, tt.triggers, triggers)
		})
	}
}

func TestParseCash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain integer", "Ленина 5 + 20р", "5"},
		{"first token wins over intended figure", "Минская 12, +мк 15р", "12"},
		{"comma separator normalized", "+мк 7,50", "7.5"},
		{"dot separator", "+ 12.30 руб", "12.3"},
		{"trailing separator tolerated", "+ 12, мк", "12"},
		{"no digits", "Ленина + мк", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCash(tt.text)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"cash = %s, want %s", got, tt.want)
		})
	}
}
